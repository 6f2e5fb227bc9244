package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cinelog/internal/social/models"
	usermodels "cinelog/internal/user/models"
	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
	"cinelog/pkg/platform/httputil"
	"cinelog/pkg/requestcontext"
)

type Service interface {
	Follow(ctx context.Context, actor models.Actor, target id.UserID) (*models.Follow, error)
	Unfollow(ctx context.Context, actor models.Actor, target id.UserID) (*models.Follow, error)
	Like(ctx context.Context, actor models.Actor, reviewID id.ReviewID) (*models.ReviewLike, error)
	Unlike(ctx context.Context, actor models.Actor, reviewID id.ReviewID) (*models.ReviewLike, error)
	Followings(ctx context.Context, userID id.UserID) ([]*usermodels.User, error)
	Followers(ctx context.Context, userID id.UserID) ([]*usermodels.User, error)
}

// Handler serves follow and like endpoints. All of them are protected, so
// the actor always comes from the request context.
type Handler struct {
	social Service
	logger *slog.Logger
}

func New(social Service, logger *slog.Logger) *Handler {
	return &Handler{social: social, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/users/{id}/follow", h.handleFollow)
	r.Post("/users/{id}/unfollow", h.handleUnfollow)
	r.Get("/users/me/followings", h.handleFollowings)
	r.Get("/users/me/followers", h.handleFollowers)
	r.Post("/likes/reviews/{id}/like", h.handleLike)
	r.Post("/likes/reviews/{id}/unlike", h.handleUnlike)
}

func (h *Handler) handleFollow(w http.ResponseWriter, r *http.Request) {
	h.followEdge(w, r, h.social.Follow)
}

func (h *Handler) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	h.followEdge(w, r, h.social.Unfollow)
}

func (h *Handler) followEdge(w http.ResponseWriter, r *http.Request,
	op func(context.Context, models.Actor, id.UserID) (*models.Follow, error),
) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	target, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "user id must be a uuid"))
		return
	}
	f, err := op(r.Context(), actor, target)
	if err != nil {
		h.logFailure(r.Context(), "follow update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f.ToResponse())
}

func (h *Handler) handleLike(w http.ResponseWriter, r *http.Request) {
	h.likeEdge(w, r, h.social.Like)
}

func (h *Handler) handleUnlike(w http.ResponseWriter, r *http.Request) {
	h.likeEdge(w, r, h.social.Unlike)
}

func (h *Handler) likeEdge(w http.ResponseWriter, r *http.Request,
	op func(context.Context, models.Actor, id.ReviewID) (*models.ReviewLike, error),
) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	reviewID, err := id.ParseReviewID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "review id must be a uuid"))
		return
	}
	l, err := op(r.Context(), actor, reviewID)
	if err != nil {
		h.logFailure(r.Context(), "like update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l.ToResponse())
}

func (h *Handler) handleFollowings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	users, err := h.social.Followings(r.Context(), actor.ID)
	if err != nil {
		h.logFailure(r.Context(), "failed to list followings", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]models.FollowingUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, models.FollowingUserResponse{FollowingID: u.ID.String(), Username: u.Username})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleFollowers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	users, err := h.social.Followers(r.Context(), actor.ID)
	if err != nil {
		h.logFailure(r.Context(), "failed to list followers", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]models.FollowerUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, models.FollowerUserResponse{FollowerID: u.ID.String(), Username: u.Username})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// actor reads the identity the auth gate attached. Its absence means the
// route was mounted outside the gate.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	ctx := r.Context()
	userID, ok := requestcontext.UserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth gate",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return models.Actor{}, false
	}
	return models.Actor{ID: userID, Username: requestcontext.Username(ctx)}, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
