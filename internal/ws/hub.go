// Package ws is the pub/sub group messaging primitive: live websocket
// connections, named groups of connections, and fire-and-forget emits.
package ws

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Vasu1712/listenparty-backend/internal/metrics"
	"go.uber.org/zap"
)

// ErrUnknownConnection is returned for operations on a connection that is
// not attached to the hub.
var ErrUnknownConnection = errors.New("unknown connection")

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client             // connID -> client
	groups  map[string]map[string]*Client  // group -> connID -> client
	member  map[string]map[string]struct{} // connID -> groups
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(log *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
		member:  make(map[string]map[string]struct{}),
		log:     log.Named("hub"),
		metrics: m,
	}
}

// Attach makes c reachable by its ID.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.member[c.ID] = make(map[string]struct{})
	h.mu.Unlock()
	h.metrics.ConnOpened()
}

// Remove detaches a connection, drops it from every group and closes its
// send queue. Safe to call more than once.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	for g := range h.member[connID] {
		h.leaveLocked(connID, g)
	}
	delete(h.member, connID)
	delete(h.clients, connID)
	close(c.Send)
	h.mu.Unlock()
	h.metrics.ConnClosed()
}

// Join adds a connection to group.
func (h *Hub) Join(connID, group string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]*Client)
	}
	h.groups[group][connID] = c
	h.member[connID][group] = struct{}{}
	return nil
}

// Leave removes a connection from group.
func (h *Hub) Leave(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, group)
}

func (h *Hub) leaveLocked(connID, group string) {
	if m, ok := h.groups[group]; ok {
		delete(m, connID)
		if len(m) == 0 {
			delete(h.groups, group)
		}
	}
	if g, ok := h.member[connID]; ok {
		delete(g, group)
	}
}

// Groups lists the groups of a connection, sorted.
func (h *Hub) Groups(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.member[connID]))
	for g := range h.member[connID] {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Members lists the connection IDs in group, sorted.
func (h *Hub) Members(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of attached connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Emit sends event to every connection of group except the excluded ones.
func (h *Hub) Emit(group, event string, data any, exclude ...string) {
	msg, err := encode(event, nil, data)
	if err != nil {
		h.log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.groups[group] {
		if excluded(id, exclude) {
			continue
		}
		h.deliver(c, event, msg)
	}
}

// EmitTo sends event to one connection.
func (h *Hub) EmitTo(connID, event string, data any) {
	h.send(connID, event, nil, data)
}

// Ack answers the frame with acknowledgement id on connID.
func (h *Hub) Ack(connID string, id int64, data any) {
	h.send(connID, AckEvent, &id, data)
}

func (h *Hub) send(connID, event string, ack *int64, data any) {
	msg, err := encode(event, ack, data)
	if err != nil {
		h.log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connID]; ok {
		h.deliver(c, event, msg)
	}
}

// deliver must be called with h.mu held; Remove closes Send under the write lock.
func (h *Hub) deliver(c *Client, event string, msg []byte) {
	select {
	case c.Send <- msg:
	default:
		h.metrics.Dropped()
		h.log.Warn("send buffer full, frame dropped",
			zap.String("conn", c.ID), zap.String("event", event))
	}
}

// Kick closes a connection without waiting for its cleanup. Handlers running
// on the connection's own read loop must use Kick, not Evict.
func (h *Hub) Kick(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.Close()
	}
}

// Evict closes a connection and waits until its disconnect cleanup finished
// or ctx expires. Unknown connections are treated as already gone.
func (h *Hub) Evict(ctx context.Context, connID string) error {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	c.Close()
	h.metrics.Evicted()
	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func excluded(id string, exclude []string) bool {
	for _, e := range exclude {
		if e == id {
			return true
		}
	}
	return false
}
