package user

import (
	"context"
	"sort"
	"sync"

	"cinelog/internal/user/models"
	id "cinelog/pkg/domain"
	"cinelog/pkg/platform/sentinel"
)

// InMemory is a map-backed Store used when no database is configured.
type InMemory struct {
	mu         sync.RWMutex
	users      map[id.UserID]*models.User
	byUsername map[string]id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:      make(map[id.UserID]*models.User),
		byUsername: make(map[string]id.UserID),
	}
}

func (s *InMemory) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[u.Username]; taken {
		return sentinel.ErrConflict
	}
	if _, exists := s.users[u.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := *u
	s.users[u.ID] = &stored
	s.byUsername[u.Username] = u.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *u
	return &found, nil
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byUsername[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *s.users[userID]
	return &found, nil
}

func (s *InMemory) ListByIDs(_ context.Context, ids []id.UserID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(ids))
	for _, userID := range ids {
		if u, ok := s.users[userID]; ok {
			found := *u
			out = append(out, &found)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemory) Search(_ context.Context, filter models.Filter) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if filter.Matches(u) {
			found := *u
			out = append(out, &found)
		}
	}
	sortByCreation(out)
	return out, nil
}

func sortByCreation(users []*models.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
}
