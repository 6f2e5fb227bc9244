package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps failure timestamps per key. Expired timestamps are
// pruned whenever the key is touched.
type InMemoryStore struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{failures: make(map[string][]time.Time)}
}

func (s *InMemoryStore) Failures(_ context.Context, key string, since time.Time) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.pruneLocked(key, since)
	if len(kept) == 0 {
		return 0, time.Time{}, nil
	}
	return len(kept), kept[0], nil
}

func (s *InMemoryStore) RecordFailure(_ context.Context, key string, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[key] = append(s.pruneLocked(key, at.Add(-ttl)), at)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.failures, key)
	return nil
}

// pruneLocked drops timestamps before since. Timestamps are appended in
// clock order, so the expired ones form a prefix.
func (s *InMemoryStore) pruneLocked(key string, since time.Time) []time.Time {
	ts := s.failures[key]
	i := 0
	for i < len(ts) && ts[i].Before(since) {
		i++
	}
	if i == len(ts) {
		delete(s.failures, key)
		return nil
	}
	ts = ts[i:]
	s.failures[key] = ts
	return ts
}
