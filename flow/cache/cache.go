// Package cache provides the storage backends of the cache middleware.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("cache backend closed")

// Backend stores encoded node results by key.
//
// A ttl of zero or less means the entry never expires. Implementations must be safe for
// concurrent use; parallel branches share one backend.
type Backend interface {
	// Get returns the value stored under key. found is false when the key is absent or
	// expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key, replacing any previous entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}
