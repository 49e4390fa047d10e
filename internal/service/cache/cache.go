// Package cache memoizes serialized run results with a TTL.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by GetBytes for absent or expired keys.
var ErrCacheMiss = errors.New("cache: key not found")

// BytesCache stores raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
