// Package service implements follows and review likes. Every edge that is
// newly created or reactivated produces exactly one notification; repeated
// follows or likes and all deactivations produce none.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cinelog/internal/realtime/notifier"
	reviewmodels "cinelog/internal/review/models"
	"cinelog/internal/social/models"
	usermodels "cinelog/internal/user/models"
	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
	"cinelog/pkg/platform/sentinel"
)

// FollowStore persists follow edges. Follow and Unfollow report whether the
// active flag changed.
type FollowStore interface {
	Follow(ctx context.Context, follower, following id.UserID, at time.Time) (bool, error)
	Unfollow(ctx context.Context, follower, following id.UserID, at time.Time) (bool, error)
	FollowingIDs(ctx context.Context, follower id.UserID) ([]id.UserID, error)
	FollowerIDs(ctx context.Context, following id.UserID) ([]id.UserID, error)
}

// LikeStore persists review likes.
type LikeStore interface {
	Like(ctx context.Context, userID id.UserID, reviewID id.ReviewID, at time.Time) (bool, error)
	Unlike(ctx context.Context, userID id.UserID, reviewID id.ReviewID, at time.Time) (bool, error)
}

// Users resolves follow targets and listing entries.
type Users interface {
	Get(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	ListByIDs(ctx context.Context, ids []id.UserID) ([]*usermodels.User, error)
}

// Reviews resolves like targets to their author.
type Reviews interface {
	Get(ctx context.Context, reviewID id.ReviewID) (*reviewmodels.Review, error)
}

// Notifier delivers social notifications. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, event notifier.Event)
}

type Service struct {
	follows  FollowStore
	likes    LikeStore
	users    Users
	reviews  Reviews
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(follows FollowStore, likes LikeStore, users Users, reviews Reviews, n Notifier, opts ...Option) *Service {
	s := &Service{
		follows:  follows,
		likes:    likes,
		users:    users,
		reviews:  reviews,
		notifier: n,
		logger:   slog.Default(),
		tracer:   otel.Tracer("cinelog/social"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Follow makes actor follow target. The followee is notified only when the
// edge is created or reactivated.
func (s *Service) Follow(ctx context.Context, actor models.Actor, target id.UserID) (*models.Follow, error) {
	ctx, span := s.tracer.Start(ctx, "social.Follow", trace.WithAttributes(
		attribute.String("social.actor", actor.ID.String()),
		attribute.String("social.target", target.String()),
	))
	defer span.End()

	if actor.ID == target {
		return nil, dErrors.New(dErrors.CodeBadRequest, "cannot follow yourself")
	}
	if _, err := s.users.Get(ctx, target); err != nil {
		return nil, err
	}

	changed, err := s.follows.Follow(ctx, actor.ID, target, s.now().UTC())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to follow user")
	}
	span.SetAttributes(attribute.Bool("social.changed", changed))

	if changed {
		s.notifier.Notify(ctx, notifier.Event{
			Kind:      notifier.KindFollow,
			Actor:     actor.ID,
			ActorName: actor.Username,
			Recipient: target,
		})
	}
	return &models.Follow{FollowerID: actor.ID, FollowingID: target, IsFollowing: true}, nil
}

// Unfollow deactivates the edge if present. Unfollowing someone never
// followed is not an error.
func (s *Service) Unfollow(ctx context.Context, actor models.Actor, target id.UserID) (*models.Follow, error) {
	ctx, span := s.tracer.Start(ctx, "social.Unfollow")
	defer span.End()

	if _, err := s.follows.Unfollow(ctx, actor.ID, target, s.now().UTC()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unfollow user")
	}
	return &models.Follow{FollowerID: actor.ID, FollowingID: target, IsFollowing: false}, nil
}

// Like records actor's like on a review and notifies the review's author
// when the like is new or reactivated.
func (s *Service) Like(ctx context.Context, actor models.Actor, reviewID id.ReviewID) (*models.ReviewLike, error) {
	ctx, span := s.tracer.Start(ctx, "social.Like", trace.WithAttributes(
		attribute.String("social.actor", actor.ID.String()),
		attribute.String("social.review", reviewID.String()),
	))
	defer span.End()

	review, err := s.reviews.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	changed, err := s.likes.Like(ctx, actor.ID, reviewID, s.now().UTC())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "review not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to like review")
	}
	span.SetAttributes(attribute.Bool("social.changed", changed))

	if changed {
		s.notifier.Notify(ctx, notifier.Event{
			Kind:      notifier.KindReviewLike,
			Actor:     actor.ID,
			ActorName: actor.Username,
			Recipient: review.AuthorID,
			ReviewID:  reviewID,
		})
	}
	return &models.ReviewLike{UserID: actor.ID, ReviewID: reviewID, IsLiked: true}, nil
}

func (s *Service) Unlike(ctx context.Context, actor models.Actor, reviewID id.ReviewID) (*models.ReviewLike, error) {
	ctx, span := s.tracer.Start(ctx, "social.Unlike")
	defer span.End()

	if _, err := s.likes.Unlike(ctx, actor.ID, reviewID, s.now().UTC()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unlike review")
	}
	return &models.ReviewLike{UserID: actor.ID, ReviewID: reviewID, IsLiked: false}, nil
}

// Followings lists the users userID actively follows.
func (s *Service) Followings(ctx context.Context, userID id.UserID) ([]*usermodels.User, error) {
	ids, err := s.follows.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list followings")
	}
	return s.users.ListByIDs(ctx, ids)
}

// Followers lists the users actively following userID.
func (s *Service) Followers(ctx context.Context, userID id.UserID) ([]*usermodels.User, error) {
	ids, err := s.follows.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list followers")
	}
	return s.users.ListByIDs(ctx, ids)
}
