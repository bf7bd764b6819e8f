// Package cache provides the key-value store behind the presence registry.
package cache

import "context"

// Cache is a string key-value store. Implementations must make
// DeleteIfValue atomic.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// DeleteIfValue removes key only while it still holds value.
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
	Close()
}
