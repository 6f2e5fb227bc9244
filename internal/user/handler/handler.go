package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cinelog/internal/user/models"
	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
	"cinelog/pkg/platform/httputil"
	"cinelog/pkg/requestcontext"
)

// Service defines the user operations the handler needs.
type Service interface {
	Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
	Get(ctx context.Context, userID id.UserID) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Search(ctx context.Context, filter models.Filter) ([]*models.User, error)
}

// Handler serves the /users account endpoints.
type Handler struct {
	users  Service
	logger *slog.Logger
}

func New(users Service, logger *slog.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// Register mounts the routes. /users/me sits behind the auth gate; the rest
// are public.
func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.handleCreate)
	r.Get("/users", h.handleList)
	r.Get("/users/search", h.handleSearch)
	r.Get("/users/me", h.handleMe)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create user request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	u, err := h.users.Create(ctx, req)
	if err != nil {
		h.logFailure(ctx, "failed to create user", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.CreateUserResponse{ID: u.ID.String()})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "failed to list users", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(users))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	users, err := h.users.Search(r.Context(), filter)
	if err != nil {
		h.logFailure(r.Context(), "failed to search users", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(users))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requestcontext.UserID(ctx)
	if !ok {
		// The gate guarantees an identity on this route.
		h.logger.ErrorContext(ctx, "userID missing from context despite auth gate",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	u, err := h.users.Get(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to load current user", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u.ToResponse())
}

func parseFilter(r *http.Request) (models.Filter, error) {
	var filter models.Filter
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		switch key {
		case "username":
			filter.Username = &value
		case "age":
			age, err := strconv.Atoi(value)
			if err != nil || age <= 0 {
				return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "age must be a positive integer")
			}
			filter.Age = &age
		case "gender":
			gender := models.Gender(value)
			if !gender.Valid() {
				return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "gender must be male or female")
			}
			filter.Gender = &gender
		default:
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "unknown search parameter: "+key)
		}
	}
	return filter, nil
}

func toResponses(users []*models.User) []models.UserResponse {
	out := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	return out
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
