// Package service creates and loads reviews.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cinelog/internal/review/models"
	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
	"cinelog/pkg/platform/sentinel"
)

// Store persists reviews.
type Store interface {
	Create(ctx context.Context, r *models.Review) error
	FindByID(ctx context.Context, reviewID id.ReviewID) (*models.Review, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a review written by authorID.
func (s *Service) Create(ctx context.Context, authorID id.UserID, req models.CreateReviewRequest) (*models.Review, error) {
	req.Normalize()
	movieID, err := req.Validate()
	if err != nil {
		return nil, err
	}

	r := &models.Review{
		ID:        id.NewReviewID(),
		AuthorID:  authorID,
		MovieID:   movieID,
		Title:     req.Title,
		Content:   req.Content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// author deleted between authentication and insert
			return nil, dErrors.New(dErrors.CodeNotFound, "author not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save review")
	}
	s.logger.InfoContext(ctx, "review created",
		"review_id", r.ID.String(),
		"author_id", authorID.String(),
	)
	return r, nil
}

// Get returns one review. Missing reviews are CodeNotFound.
func (s *Service) Get(ctx context.Context, reviewID id.ReviewID) (*models.Review, error) {
	r, err := s.store.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "review not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load review")
	}
	return r, nil
}
