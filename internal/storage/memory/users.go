package memory

import (
	"context"
	"fmt"

	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
)

// GetUser returns a copy of the user record.
func (s *Store) GetUser(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, errs.ErrNotFound)
	}
	return copyUser(u), nil
}

// UpsertUser creates the user or updates its profile fields.
func (s *Store) UpsertUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.users[u.Username]; ok {
		cur.DisplayName = u.DisplayName
		cur.Img = u.Img
		if u.SealedToken != nil {
			cur.SealedToken = append([]byte(nil), u.SealedToken...)
		}
		return nil
	}
	c := copyUser(u)
	c.Activity = models.ActivityNone
	c.Stream = ""
	s.users[u.Username] = c
	return nil
}

// SwapParticipation is a compare-and-set on (activity, stream).
func (s *Store) SwapParticipation(_ context.Context, username string, from, to models.Participation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return false, fmt.Errorf("user %q: %w", username, errs.ErrNotFound)
	}
	if u.Participation() != from {
		return false, nil
	}
	u.Activity = to.Activity
	u.Stream = to.Stream
	return true, nil
}

// ResetListeners returns usernames to idle if they still listen to stream.
func (s *Store) ResetListeners(_ context.Context, stream string, usernames []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, name := range usernames {
		u, ok := s.users[name]
		if !ok || u.Participation() != models.Listening(stream) {
			continue
		}
		u.Activity = models.ActivityNone
		u.Stream = ""
		n++
	}
	return n, nil
}

// SaveToken stores the sealed provider token of an existing user.
func (s *Store) SaveToken(_ context.Context, username string, sealed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return fmt.Errorf("user %q: %w", username, errs.ErrNotFound)
	}
	u.SealedToken = append([]byte(nil), sealed...)
	return nil
}
