// Package rooms enforces that a connection is in at most one stream room.
package rooms

import (
	"context"
	"sync"
)

// RoomPrefix namespaces stream rooms among the hub's groups.
const RoomPrefix = "music__"

// RoomName derives the room of a stream.
func RoomName(stream string) string {
	return RoomPrefix + stream
}

// Groups is the group membership primitive of the transport.
type Groups interface {
	Join(connID, group string) error
	Leave(connID, group string)
	Groups(connID string) []string
}

// Locator resolves a user to its live connection.
type Locator interface {
	Lookup(ctx context.Context, username string) (string, bool, error)
}

// Tracker layers the single-room rule on top of Groups.
type Tracker struct {
	groups  Groups
	locator Locator

	mu    sync.Mutex
	locks map[string]*sync.Mutex // connID -> lock serializing its membership changes
}

func NewTracker(groups Groups, locator Locator) *Tracker {
	return &Tracker{
		groups:  groups,
		locator: locator,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (t *Tracker) lock(connID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[connID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[connID] = l
	}
	return l
}

// JoinRoom moves the connection into room, leaving every other room first.
func (t *Tracker) JoinRoom(connID, room string) error {
	l := t.lock(connID)
	l.Lock()
	defer l.Unlock()

	t.leaveAll(connID)
	return t.groups.Join(connID, room)
}

// LeaveAllRooms removes the connection from every room. Idempotent.
func (t *Tracker) LeaveAllRooms(connID string) {
	l := t.lock(connID)
	l.Lock()
	defer l.Unlock()

	t.leaveAll(connID)
}

func (t *Tracker) leaveAll(connID string) {
	for _, g := range t.groups.Groups(connID) {
		t.groups.Leave(connID, g)
	}
}

// LeaveRoom removes the connection from room only.
func (t *Tracker) LeaveRoom(connID, room string) {
	l := t.lock(connID)
	l.Lock()
	defer l.Unlock()

	t.groups.Leave(connID, room)
}

// EvictUser removes the live connection of username from room. A user that
// already moved to another room keeps it. Users without a connection are
// ignored.
func (t *Tracker) EvictUser(ctx context.Context, username, room string) error {
	connID, ok, err := t.locator.Lookup(ctx, username)
	if err != nil {
		return err
	}
	if ok {
		t.LeaveRoom(connID, room)
	}
	return nil
}

// Forget releases the per-connection state of a closed connection.
func (t *Tracker) Forget(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locks, connID)
}
