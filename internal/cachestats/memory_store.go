package cachestats

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu    sync.Mutex
	users map[string]map[string]Counters
}

// NewMemoryStore returns an in-memory store intended for local development and tests.
func NewMemoryStore() Store {
	return &memoryStore{users: make(map[string]map[string]Counters)}
}

func (s *memoryStore) Add(_ context.Context, userID, cache string, delta Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	caches, ok := s.users[userID]
	if !ok {
		caches = make(map[string]Counters)
		s.users[userID] = caches
	}
	c := caches[cache]
	c.Hits += delta.Hits
	c.Misses += delta.Misses
	c.Evictions += delta.Evictions
	c.SizeBytes = delta.SizeBytes
	caches[cache] = c
	return nil
}

func (s *memoryStore) Load(_ context.Context, userID string) (map[string]Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.users[userID]))
	for name, c := range s.users[userID] {
		out[name] = c
	}
	return out, nil
}
