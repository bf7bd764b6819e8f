package memory

import (
	"context"

	"github.com/Vasu1712/listenparty-backend/internal/models"
)

// AppendAction adds a to the log of its stream.
func (s *Store) AppendAction(_ context.Context, a *models.ChatAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *a
	s.actions[a.Stream] = append(s.actions[a.Stream], &c)
	return nil
}

// ListActions returns the latest limit actions of stream, oldest first.
func (s *Store) ListActions(_ context.Context, stream string, limit int) ([]*models.ChatAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.actions[stream]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]*models.ChatAction, 0, len(log))
	for _, a := range log {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}
