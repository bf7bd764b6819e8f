package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Vasu1712/listenparty-backend/internal/models"
)

// AppendAction inserts a chat action. Variant fields go to their own columns.
func (s *Store) AppendAction(ctx context.Context, a *models.ChatAction) error {
	var message, who, track sql.NullString
	switch b := a.Body.(type) {
	case models.Message:
		message = sql.NullString{String: b.Text, Valid: true}
	case models.DJAdd:
		who = sql.NullString{String: b.Who, Valid: true}
	case models.QueueAdd:
		track = sql.NullString{String: b.Track, Valid: true}
	default:
		return fmt.Errorf("chat action %q: type %q is not persisted", a.ID, a.Type())
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_actions (id, action_type, sender, stream, date, message, who, track)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, string(a.Type()), a.Sender, a.Stream, a.Date.UTC(), message, who, track,
	)
	if err != nil {
		return fmt.Errorf("append chat action to %q: %w", a.Stream, err)
	}
	return nil
}

// ListActions returns the latest limit actions of stream, oldest first.
func (s *Store) ListActions(ctx context.Context, stream string, limit int) ([]*models.ChatAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action_type, sender, stream, date, message, who, track FROM (
			SELECT * FROM chat_actions WHERE stream = $1 ORDER BY seq DESC LIMIT $2
		) latest ORDER BY seq ASC`,
		stream, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list chat actions of %q: %w", stream, err)
	}
	defer rows.Close()

	actions := []*models.ChatAction{}
	for rows.Next() {
		a := &models.ChatAction{}
		var actionType string
		var message, who, track sql.NullString
		if err := rows.Scan(&a.ID, &actionType, &a.Sender, &a.Stream, &a.Date, &message, &who, &track); err != nil {
			return nil, fmt.Errorf("scan chat action row: %w", err)
		}
		switch models.ActionType(actionType) {
		case models.ActionMessage:
			a.Body = models.Message{Text: message.String}
		case models.ActionAddDJ:
			a.Body = models.DJAdd{Who: who.String}
		case models.ActionAddQueue:
			a.Body = models.QueueAdd{Track: track.String}
		default:
			return nil, fmt.Errorf("chat action %q: unknown type %q", a.ID, actionType)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat action rows: %w", err)
	}
	return actions, nil
}
