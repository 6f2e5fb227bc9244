package review

import (
	"context"
	"sync"

	"cinelog/internal/review/models"
	id "cinelog/pkg/domain"
	"cinelog/pkg/platform/sentinel"
)

// InMemory keeps reviews in a map when no database is configured.
type InMemory struct {
	mu      sync.RWMutex
	reviews map[id.ReviewID]*models.Review
}

func NewInMemory() *InMemory {
	return &InMemory{reviews: make(map[id.ReviewID]*models.Review)}
}

func (s *InMemory) Create(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reviews[r.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := *r
	s.reviews[r.ID] = &stored
	return nil
}

func (s *InMemory) FindByID(_ context.Context, reviewID id.ReviewID) (*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[reviewID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *r
	return &found, nil
}
