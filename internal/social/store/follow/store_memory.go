package follow

import (
	"context"
	"sort"
	"sync"
	"time"

	id "cinelog/pkg/domain"
)

type key struct {
	follower  id.UserID
	following id.UserID
}

type edge struct {
	active    bool
	createdAt time.Time
	updatedAt time.Time
}

// InMemory keeps follow edges in a map. It does not check that either user
// exists; the service does that before writing.
type InMemory struct {
	mu    sync.RWMutex
	edges map[key]*edge
}

func NewInMemory() *InMemory {
	return &InMemory{edges: make(map[key]*edge)}
}

// Follow creates or reactivates the edge. It reports whether the edge went
// from absent or inactive to active.
func (s *InMemory) Follow(_ context.Context, follower, following id.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{follower, following}
	e, ok := s.edges[k]
	if !ok {
		s.edges[k] = &edge{active: true, createdAt: at, updatedAt: at}
		return true, nil
	}
	if e.active {
		return false, nil
	}
	e.active = true
	e.updatedAt = at
	return true, nil
}

// Unfollow deactivates the edge and reports whether it was active.
func (s *InMemory) Unfollow(_ context.Context, follower, following id.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edges[key{follower, following}]
	if !ok || !e.active {
		return false, nil
	}
	e.active = false
	e.updatedAt = at
	return true, nil
}

// FollowingIDs returns who follower actively follows, oldest first.
func (s *InMemory) FollowingIDs(_ context.Context, follower id.UserID) ([]id.UserID, error) {
	return s.collect(func(k key) (id.UserID, bool) {
		return k.following, k.follower == follower
	}), nil
}

// FollowerIDs returns who actively follows following, oldest first.
func (s *InMemory) FollowerIDs(_ context.Context, following id.UserID) ([]id.UserID, error) {
	return s.collect(func(k key) (id.UserID, bool) {
		return k.follower, k.following == following
	}), nil
}

func (s *InMemory) collect(pick func(key) (id.UserID, bool)) []id.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		userID    id.UserID
		createdAt time.Time
	}
	var hits []hit
	for k, e := range s.edges {
		if !e.active {
			continue
		}
		if userID, ok := pick(k); ok {
			hits = append(hits, hit{userID, e.createdAt})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].createdAt.Equal(hits[j].createdAt) {
			return hits[i].userID.String() < hits[j].userID.String()
		}
		return hits[i].createdAt.Before(hits[j].createdAt)
	})
	out := make([]id.UserID, len(hits))
	for i, h := range hits {
		out[i] = h.userID
	}
	return out
}
