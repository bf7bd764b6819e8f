// Package memory is a process-local Store used for development and tests.
// Every operation runs under one RWMutex, which makes each guarded update atomic.
package memory

import (
	"sync"

	"github.com/Vasu1712/listenparty-backend/internal/models"
)

// Store keeps users, streams and chat actions in maps.
type Store struct {
	mu      sync.RWMutex
	users   map[string]*models.User         // username -> user
	streams map[string]*models.Stream       // name -> stream
	actions map[string][]*models.ChatAction // stream name -> log, oldest first
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]*models.User),
		streams: make(map[string]*models.Stream),
		actions: make(map[string][]*models.ChatAction),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func copyUser(u *models.User) *models.User {
	c := *u
	c.SealedToken = append([]byte(nil), u.SealedToken...)
	return &c
}

func copyStream(st *models.Stream) *models.Stream {
	c := *st
	c.Listeners = append([]string{}, st.Listeners...)
	c.DJ = append([]string{}, st.DJ...)
	return &c
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
