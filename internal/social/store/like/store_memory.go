package like

import (
	"context"
	"sync"
	"time"

	id "cinelog/pkg/domain"
)

type key struct {
	user   id.UserID
	review id.ReviewID
}

type edge struct {
	active    bool
	updatedAt time.Time
}

// InMemory keeps review likes in a map.
type InMemory struct {
	mu    sync.Mutex
	edges map[key]*edge
}

func NewInMemory() *InMemory {
	return &InMemory{edges: make(map[key]*edge)}
}

// Like creates or reactivates the like and reports whether it changed.
func (s *InMemory) Like(_ context.Context, userID id.UserID, reviewID id.ReviewID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{userID, reviewID}
	if e, ok := s.edges[k]; ok {
		if e.active {
			return false, nil
		}
		e.active, e.updatedAt = true, at
		return true, nil
	}
	s.edges[k] = &edge{active: true, updatedAt: at}
	return true, nil
}

// Unlike deactivates the like and reports whether it was active.
func (s *InMemory) Unlike(_ context.Context, userID id.UserID, reviewID id.ReviewID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edges[key{userID, reviewID}]
	if !ok || !e.active {
		return false, nil
	}
	e.active, e.updatedAt = false, at
	return true, nil
}
