// Package presence maps an authenticated identity to its single live connection.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/cache"
	"go.uber.org/zap"
)

// Evictor forcibly disconnects a connection and waits for its cleanup.
type Evictor interface {
	Evict(ctx context.Context, connID string) error
}

// Registry keeps "user::<username> -> connection id" in a Cache.
type Registry struct {
	cache   cache.Cache
	evictor Evictor
	prefix  string
	timeout time.Duration
	log     *zap.Logger
}

// NewRegistry builds a registry. prefix namespaces keys in a shared cache;
// evictTimeout bounds the wait for a replaced connection to clean up.
func NewRegistry(c cache.Cache, evictor Evictor, prefix string, evictTimeout time.Duration, log *zap.Logger) *Registry {
	return &Registry{
		cache:   c,
		evictor: evictor,
		prefix:  prefix,
		timeout: evictTimeout,
		log:     log.Named("presence"),
	}
}

// Key returns the cache key of username.
func (r *Registry) Key(username string) string {
	return r.prefix + "user::" + username
}

// Register makes connID the connection of username. A previous connection of
// the same identity is disconnected first; the new mapping is only written
// once that eviction returned.
func (r *Registry) Register(ctx context.Context, username, connID string) error {
	key := r.Key(username)
	prev, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("presence lookup %s: %w", username, err)
	}
	if ok && prev != connID {
		evictCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.evictor.Evict(evictCtx, prev)
		cancel()
		if err != nil {
			// The stale connection may already be gone; its cleanup only
			// deletes the entry while it still points at itself.
			r.log.Warn("evict previous connection",
				zap.String("user", username), zap.String("conn", prev), zap.Error(err))
		} else {
			r.log.Info("evicted previous connection",
				zap.String("user", username), zap.String("conn", prev))
		}
	}
	if err := r.cache.Set(ctx, key, connID); err != nil {
		return fmt.Errorf("presence register %s: %w", username, err)
	}
	return nil
}

// Unregister removes the entry of username if it still belongs to connID.
func (r *Registry) Unregister(ctx context.Context, username, connID string) error {
	if _, err := r.cache.DeleteIfValue(ctx, r.Key(username), connID); err != nil {
		return fmt.Errorf("presence unregister %s: %w", username, err)
	}
	return nil
}

// Lookup returns the live connection of username.
func (r *Registry) Lookup(ctx context.Context, username string) (string, bool, error) {
	connID, ok, err := r.cache.Get(ctx, r.Key(username))
	if err != nil {
		return "", false, fmt.Errorf("presence lookup %s: %w", username, err)
	}
	return connID, ok, nil
}
