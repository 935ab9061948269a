package scanpattern

import (
	"context"
	"sync"
)

// MemoryProvider serves fixed activity snapshots, for tests and local runs.
type MemoryProvider struct {
	mu       sync.RWMutex
	activity map[string]Activity
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{activity: make(map[string]Activity)}
}

// Set records the activity snapshot for a user.
func (p *MemoryProvider) Set(userID string, a Activity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activity[userID] = a
}

func (p *MemoryProvider) Activity(_ context.Context, userID string) (*Activity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a := p.activity[userID]
	return &a, nil
}
