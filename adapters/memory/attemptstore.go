// Package memory holds process-local stores for state that does not need to
// survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/DromeProduto/DromeBoard/domain/ratelimit"
	"github.com/DromeProduto/DromeBoard/ports"
)

// AttemptStore keeps failed-login windows in memory.
type AttemptStore struct {
	mu    sync.RWMutex
	state map[string]ratelimit.WindowState
}

// NewAttemptStore creates an empty store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		state: make(map[string]ratelimit.WindowState),
	}
}

// Get returns the window for key, zero when unknown.
func (s *AttemptStore) Get(ctx context.Context, key string) (ratelimit.WindowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state[key], nil
}

// Set stores the window for key.
func (s *AttemptStore) Set(ctx context.Context, key string, state ratelimit.WindowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = state
	return nil
}

// Delete forgets key.
func (s *AttemptStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, key)
	return nil
}

// Sweep drops windows that are over and returns how many were removed.
func (s *AttemptStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, st := range s.state {
		if ratelimit.Expired(st, now) {
			delete(s.state, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (s *AttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

var _ ports.AttemptStore = (*AttemptStore)(nil)
