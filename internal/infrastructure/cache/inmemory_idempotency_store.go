package cache

import (
	"context"
	"sync"
	"time"

	"github.com/procurement/backend/internal/domain/shared"
)

// sweepInterval bounds how often MarkProcessed scans for closed windows
const sweepInterval = time.Minute

// InMemoryIdempotencyStore keeps sync-window markers in process memory. It
// backs the sync handler when Redis is disabled, so a window only suppresses
// repeats seen by this instance. Closed windows are swept lazily while new
// ones are opened.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	windows   map[string]time.Time // key -> window end
	lastSweep time.Time
	now       func() time.Time
}

// NewInMemoryIdempotencyStore creates an empty store
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		windows: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkProcessed opens a window of ttl for key unless one is still open
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	if end, ok := s.windows[key]; ok && now.Before(end) {
		return false, nil
	}
	s.windows[key] = now.Add(ttl)
	return true, nil
}

// Release closes the window for key
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.windows, key)
	s.mu.Unlock()
	return nil
}

// Close forgets every window
func (s *InMemoryIdempotencyStore) Close() error {
	s.mu.Lock()
	clear(s.windows)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryIdempotencyStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for key, end := range s.windows {
		if !now.Before(end) {
			delete(s.windows, key)
		}
	}
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
