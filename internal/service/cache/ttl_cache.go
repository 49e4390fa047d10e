package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	v      []byte
	exp    time.Time
	access time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

// TTLConfig bounds the in-process cache.
type TTLConfig struct {
	MaxEntries      int
	CleanupInterval time.Duration
}

// TTLOption configures TTLCache.
type TTLOption func(*TTLConfig)

// WithMaxEntries caps the number of stored entries.
func WithMaxEntries(n int) TTLOption {
	return func(c *TTLConfig) {
		if n > 0 {
			c.MaxEntries = n
		}
	}
}

// WithCleanupInterval sets how often expired entries are swept.
func WithCleanupInterval(d time.Duration) TTLOption {
	return func(c *TTLConfig) {
		if d > 0 {
			c.CleanupInterval = d
		}
	}
}

// TTLCache is an in-process BytesCache with least-recently-used eviction once
// MaxEntries is reached. Expired entries are swept in the background.
type TTLCache struct {
	mu       sync.Mutex
	m        map[string]entry
	maxSize  int
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewTTLCache(opts ...TTLOption) *TTLCache {
	cfg := &TTLConfig{MaxEntries: 1000, CleanupInterval: time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	c := &TTLCache{
		m:       make(map[string]entry),
		maxSize: cfg.MaxEntries,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.cleanupLoop(cfg.CleanupInterval)
	return c
}

func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	e, ok := c.m[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if e.expired(now) {
		delete(c.m, key)
		return nil, ErrCacheMiss
	}
	e.access = now
	c.m[key] = e
	return e.v, nil
}

// SetBytes stores value; ttl <= 0 never expires. A full cache first drops
// expired entries, then the least recently used one.
func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	if _, ok := c.m[key]; !ok && len(c.m) >= c.maxSize {
		c.removeExpiredLocked(now)
		if len(c.m) >= c.maxSize {
			c.evictLRULocked()
		}
	}
	c.m[key] = entry{v: value, exp: exp, access: now}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Close stops the background sweep.
func (c *TTLCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *TTLCache) sweep() {
	c.mu.Lock()
	c.removeExpiredLocked(c.now())
	c.mu.Unlock()
}

func (c *TTLCache) removeExpiredLocked(now time.Time) {
	for k, e := range c.m {
		if e.expired(now) {
			delete(c.m, k)
		}
	}
}

func (c *TTLCache) evictLRULocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range c.m {
		if !found || e.access.Before(oldest) {
			oldestKey, oldest, found = k, e.access, true
		}
	}
	if found {
		delete(c.m, oldestKey)
	}
}

func (c *TTLCache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}
