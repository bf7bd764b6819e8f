package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/lib/pq"
)

const streamColumns = `name, streamer, active, listeners, dj, date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStream(row rowScanner) (*models.Stream, error) {
	st := &models.Stream{}
	err := row.Scan(&st.Name, &st.Streamer, &st.Active, pq.Array(&st.Listeners), pq.Array(&st.DJ), &st.Date)
	if err != nil {
		return nil, err
	}
	if st.Listeners == nil {
		st.Listeners = []string{}
	}
	if st.DJ == nil {
		st.DJ = []string{}
	}
	return st, nil
}

// GetStream loads a stream by name.
func (s *Store) GetStream(ctx context.Context, name string) (*models.Stream, error) {
	st, err := scanStream(s.db.QueryRowContext(ctx,
		`SELECT `+streamColumns+` FROM streams WHERE name = $1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stream %q: %w", name, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stream %q: %w", name, err)
	}
	return st, nil
}

// ClaimStream inserts the stream or reactivates it. The WHERE clause of the
// upsert refuses to take over a stream that is active under someone else.
func (s *Store) ClaimStream(ctx context.Context, name, streamer string, now time.Time) (*models.Stream, error) {
	st, err := scanStream(s.db.QueryRowContext(ctx, `
		INSERT INTO streams (name, streamer, active, date)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (name) DO UPDATE SET
			dj = CASE WHEN streams.streamer = EXCLUDED.streamer
				THEN array_remove(streams.dj, EXCLUDED.streamer) ELSE '{}' END,
			listeners = array_remove(streams.listeners, EXCLUDED.streamer),
			date = CASE WHEN streams.active THEN streams.date ELSE EXCLUDED.date END,
			streamer = EXCLUDED.streamer,
			active = TRUE
		WHERE NOT streams.active OR streams.streamer = EXCLUDED.streamer
		RETURNING `+streamColumns,
		name, streamer, now.UTC(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Conflict("Stream name already has an active streamer.")
	}
	if err != nil {
		return nil, fmt.Errorf("claim stream %q: %w", name, err)
	}
	return st, nil
}

// ReleaseStream deactivates the stream and empties its listeners, returning
// the previous listener list.
func (s *Store) ReleaseStream(ctx context.Context, name, streamer string) ([]string, error) {
	var listeners []string
	err := s.db.QueryRowContext(ctx, `
		WITH old AS (
			SELECT name, listeners FROM streams
			WHERE name = $1 AND streamer = $2 AND active
			FOR UPDATE
		)
		UPDATE streams SET active = FALSE, listeners = '{}'
		FROM old WHERE streams.name = old.name
		RETURNING old.listeners`,
		name, streamer,
	).Scan(pq.Array(&listeners))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("release stream %q: %w", name, err)
	}
	return listeners, nil
}

// AddListener appends username to an active stream it does not stream.
func (s *Store) AddListener(ctx context.Context, name, username string) (*models.Stream, error) {
	st, err := scanStream(s.db.QueryRowContext(ctx, `
		UPDATE streams SET listeners = CASE WHEN $2 = ANY(listeners)
			THEN listeners ELSE array_append(listeners, $2) END
		WHERE name = $1 AND active AND streamer <> $2
		RETURNING `+streamColumns,
		name, username,
	))
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("add listener to %q: %w", name, err)
	}

	cur, err := s.GetStream(ctx, name)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return nil, errs.NotFound("This is not an active stream.")
	case err != nil:
		return nil, err
	case !cur.Active:
		return nil, errs.NotFound("This is not an active stream.")
	default:
		return nil, errs.Conflict("You can't listen to your own stream.")
	}
}

// RemoveListener pulls username out of the listener array.
func (s *Store) RemoveListener(ctx context.Context, name, username string) (*models.Stream, error) {
	st, err := scanStream(s.db.QueryRowContext(ctx, `
		UPDATE streams SET listeners = array_remove(listeners, $2)
		WHERE name = $1
		RETURNING `+streamColumns,
		name, username,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stream %q: %w", name, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("remove listener from %q: %w", name, err)
	}
	return st, nil
}

// AddDJ appends who to the DJ array when granter holds queue rights.
func (s *Store) AddDJ(ctx context.Context, name, granter, who string) (*models.Stream, error) {
	st, err := scanStream(s.db.QueryRowContext(ctx, `
		UPDATE streams SET dj = array_append(dj, $3)
		WHERE name = $1 AND active
			AND (streamer = $2 OR $2 = ANY(dj))
			AND streamer <> $3 AND NOT ($3 = ANY(dj))
		RETURNING `+streamColumns,
		name, granter, who,
	))
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("add dj to %q: %w", name, err)
	}

	cur, err := s.GetStream(ctx, name)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return nil, errs.NotFound("This is not an active stream.")
	case err != nil:
		return nil, err
	case !cur.Active:
		return nil, errs.NotFound("This is not an active stream.")
	case !cur.CanQueue(granter):
		return nil, errs.Forbidden("Only the streamer or a DJ can add DJs.")
	default:
		return nil, errs.Conflict("User is already a DJ.")
	}
}

// ListActiveStreams pages through active streams, newest first.
func (s *Store) ListActiveStreams(ctx context.Context, offset, limit int) ([]*models.Stream, int, error) {
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM streams WHERE active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count active streams: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+streamColumns+` FROM streams
		WHERE active
		ORDER BY date DESC, name ASC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list active streams: %w", err)
	}
	defer rows.Close()

	streams := []*models.Stream{}
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan stream row: %w", err)
		}
		streams = append(streams, st)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stream rows: %w", err)
	}
	return streams, total, nil
}
