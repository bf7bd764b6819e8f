package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/lib/pq"
)

// GetUser loads a user by username.
func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{}
	var activity string
	err := s.db.QueryRowContext(ctx,
		`SELECT username, display_name, img, activity, stream, sealed_token FROM users WHERE username = $1`,
		username,
	).Scan(&u.Username, &u.DisplayName, &u.Img, &activity, &u.Stream, &u.SealedToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	u.Activity = models.ParseActivity(activity)
	return u, nil
}

// UpsertUser inserts the user or refreshes its profile. A nil SealedToken
// keeps the stored token.
func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, display_name, img, sealed_token)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			img = EXCLUDED.img,
			sealed_token = COALESCE(EXCLUDED.sealed_token, users.sealed_token)`,
		u.Username, u.DisplayName, u.Img, u.SealedToken,
	)
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", u.Username, err)
	}
	return nil
}

// SwapParticipation updates activity and stream only when both still equal from.
func (s *Store) SwapParticipation(ctx context.Context, username string, from, to models.Participation) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET activity = $4, stream = $5
		WHERE username = $1 AND activity = $2 AND stream = $3`,
		username, string(from.Activity), from.Stream, string(to.Activity), to.Stream,
	)
	if err != nil {
		return false, fmt.Errorf("swap participation of %q: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap participation of %q: %w", username, err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user %q: %w", username, err)
	}
	if !exists {
		return false, fmt.Errorf("user %q: %w", username, errs.ErrNotFound)
	}
	return false, nil
}

// ResetListeners sets the given listeners of stream back to idle in one
// statement.
func (s *Store) ResetListeners(ctx context.Context, stream string, usernames []string) (int64, error) {
	if len(usernames) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET activity = 'NONE', stream = ''
		WHERE stream = $1 AND activity = 'LISTEN' AND username = ANY($2)`,
		stream, pq.Array(usernames))
	if err != nil {
		return 0, fmt.Errorf("reset listeners of %q: %w", stream, err)
	}
	return res.RowsAffected()
}

// SaveToken replaces the sealed provider token of username.
func (s *Store) SaveToken(ctx context.Context, username string, sealed []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET sealed_token = $2 WHERE username = $1`, username, sealed)
	if err != nil {
		return fmt.Errorf("save token of %q: %w", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", username, errs.ErrNotFound)
	}
	return nil
}
