package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Counter is the shared low-latency counter store behind the rate limiter.
// Implementations must make Incr atomic so concurrent requests never
// under-count.
type Counter interface {
	// Incr increments key by one, setting ttl on the first increment of a
	// window, and returns the new count.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the current count for key (0 if absent or expired).
	Get(ctx context.Context, key string) (int64, error)
}

// MemoryCounter is an in-process counter for tests and single-node
// development. Production deployments use the Redis counter so all workers
// share one view.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[string]*memoryEntry)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		e = &memoryEntry{expiresAt: time.Now().Add(ttl)}
		c.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (c *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return 0, nil
	}
	return e.count, nil
}
