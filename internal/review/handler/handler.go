package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cinelog/internal/review/models"
	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
	"cinelog/pkg/platform/httputil"
	"cinelog/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, authorID id.UserID, req models.CreateReviewRequest) (*models.Review, error)
	Get(ctx context.Context, reviewID id.ReviewID) (*models.Review, error)
}

// Handler serves /reviews. Every route sits behind the auth gate.
type Handler struct {
	reviews Service
	logger  *slog.Logger
}

func New(reviews Service, logger *slog.Logger) *Handler {
	return &Handler{reviews: reviews, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/reviews", h.handleCreate)
	r.Get("/reviews/{id}", h.handleGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	authorID, ok := requestcontext.UserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth gate", "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req models.CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create review request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	review, err := h.reviews.Create(ctx, authorID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create review",
			"request_id", requestID,
			"user_id", authorID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, review.ToResponse())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reviewID, err := id.ParseReviewID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "review id must be a uuid"))
		return
	}
	review, err := h.reviews.Get(r.Context(), reviewID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, review.ToResponse())
}
