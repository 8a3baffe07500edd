package suppression

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process Store for development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStore) Claim(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	expiry, held := s.claims[key]
	if held && now.Before(expiry) {
		return false, nil
	}

	s.claims[key] = now.Add(window)

	// Drop expired claims so the map does not grow without bound.
	for k, exp := range s.claims {
		if now.After(exp) {
			delete(s.claims, k)
		}
	}

	return true, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
