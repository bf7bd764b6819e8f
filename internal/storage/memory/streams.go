package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/models"
)

// GetStream returns a copy of the stream record.
func (s *Store) GetStream(_ context.Context, name string) (*models.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.streams[name]
	if !ok {
		return nil, fmt.Errorf("stream %q: %w", name, errs.ErrNotFound)
	}
	return copyStream(st), nil
}

// ClaimStream creates or reactivates name for streamer.
func (s *Store) ClaimStream(_ context.Context, name, streamer string, now time.Time) (*models.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[name]
	if !ok {
		st = &models.Stream{Name: name, Listeners: []string{}, DJ: []string{}}
		s.streams[name] = st
	} else if st.Active && st.Streamer != streamer {
		return nil, errs.Conflict("Stream name already has an active streamer.")
	}
	if st.Streamer != streamer {
		st.DJ = []string{}
	}
	if !st.Active {
		st.Date = now
	}
	st.Streamer = streamer
	st.Active = true
	st.Listeners = remove(st.Listeners, streamer)
	st.DJ = remove(st.DJ, streamer)
	return copyStream(st), nil
}

// ReleaseStream deactivates name when streamer owns it.
func (s *Store) ReleaseStream(_ context.Context, name, streamer string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[name]
	if !ok || st.Streamer != streamer || !st.Active {
		return nil, nil
	}
	listeners := st.Listeners
	st.Active = false
	st.Listeners = []string{}
	return listeners, nil
}

// AddListener pushes username onto an active stream.
func (s *Store) AddListener(_ context.Context, name, username string) (*models.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[name]
	if !ok || !st.Active {
		return nil, errs.NotFound("This is not an active stream.")
	}
	if st.Streamer == username {
		return nil, errs.Conflict("You can't listen to your own stream.")
	}
	if !st.IsListener(username) {
		st.Listeners = append(st.Listeners, username)
	}
	return copyStream(st), nil
}

// RemoveListener pulls username from the stream's listeners.
func (s *Store) RemoveListener(_ context.Context, name, username string) (*models.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[name]
	if !ok {
		return nil, fmt.Errorf("stream %q: %w", name, errs.ErrNotFound)
	}
	st.Listeners = remove(st.Listeners, username)
	return copyStream(st), nil
}

// AddDJ grants who DJ rights on an active stream.
func (s *Store) AddDJ(_ context.Context, name, granter, who string) (*models.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[name]
	if !ok || !st.Active {
		return nil, errs.NotFound("This is not an active stream.")
	}
	if !st.CanQueue(granter) {
		return nil, errs.Forbidden("Only the streamer or a DJ can add DJs.")
	}
	if st.Streamer == who || st.IsDJ(who) {
		return nil, errs.Conflict("User is already a DJ.")
	}
	st.DJ = append(st.DJ, who)
	return copyStream(st), nil
}

// ListActiveStreams pages through active streams, newest first.
func (s *Store) ListActiveStreams(_ context.Context, offset, limit int) ([]*models.Stream, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*models.Stream
	for _, st := range s.streams {
		if st.Active {
			active = append(active, st)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Date.Equal(active[j].Date) {
			return active[i].Name < active[j].Name
		}
		return active[i].Date.After(active[j].Date)
	})

	total := len(active)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*models.Stream{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]*models.Stream, 0, end-offset)
	for _, st := range active[offset:end] {
		page = append(page, copyStream(st))
	}
	return page, total, nil
}
