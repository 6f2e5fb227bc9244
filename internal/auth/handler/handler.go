// Package handler serves the password login that starts a session.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	jwttoken "cinelog/internal/jwt_token"
	"cinelog/internal/platform/config"
	"cinelog/internal/ratelimit"
	"cinelog/internal/user/models"
	dErrors "cinelog/pkg/domain-errors"
	"cinelog/pkg/platform/httputil"
	authmw "cinelog/pkg/platform/middleware/auth"
	"cinelog/pkg/requestcontext"
)

// Authenticator checks username/password credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

// TokenIssuer signs the access and refresh tokens for a subject.
type TokenIssuer interface {
	IssuePair(subject, username string) (*jwttoken.TokenPair, error)
}

// Lockout throttles repeated failed logins per username and IP.
type Lockout interface {
	Check(ctx context.Context, username, ip string) (ratelimit.Status, error)
	RecordFailure(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username, ip string) error
}

// Handler handles POST /users/login.
type Handler struct {
	users   Authenticator
	tokens  TokenIssuer
	logger  *slog.Logger
	cookie  config.Auth
	lockout Lockout
}

type Option func(*Handler)

// WithLockout refuses logins after repeated failures.
func WithLockout(l Lockout) Option {
	return func(h *Handler) { h.lockout = l }
}

func New(users Authenticator, tokens TokenIssuer, logger *slog.Logger, cookie config.Auth, opts ...Option) *Handler {
	h := &Handler{users: users, tokens: tokens, logger: logger, cookie: cookie}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/users/login", h.HandleLogin)
}

// HandleLogin verifies the credentials and sets both token cookies. The body
// of a successful response is empty.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid login request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	ip := requestcontext.ClientIP(ctx)
	if h.locked(ctx, w, req.Username, ip) {
		return
	}

	user, err := h.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			h.recordFailure(ctx, req.Username, ip)
		}
		httputil.WriteError(w, err)
		return
	}
	h.resetFailures(ctx, req.Username, ip)

	pair, err := h.tokens.IssuePair(user.ID.String(), user.Username)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue tokens",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue tokens"))
		return
	}

	http.SetCookie(w, h.tokenCookie(authmw.AccessTokenCookie, pair.AccessToken, pair.AccessTTL))
	http.SetCookie(w, h.tokenCookie(authmw.RefreshTokenCookie, pair.RefreshToken, pair.RefreshTTL))
	w.WriteHeader(http.StatusNoContent)
}

// locked writes a 429 and returns true when the pair is locked out. Store
// failures let the attempt through.
func (h *Handler) locked(ctx context.Context, w http.ResponseWriter, username, ip string) bool {
	if h.lockout == nil {
		return false
	}
	st, err := h.lockout.Check(ctx, username, ip)
	if err != nil {
		h.logger.ErrorContext(ctx, "login lockout check failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return false
	}
	if !st.Locked {
		return false
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(st.RetryAfter)))
	httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many failed login attempts"))
	return true
}

// retryAfterSeconds rounds up so clients never retry before the lock lifts.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func (h *Handler) recordFailure(ctx context.Context, username, ip string) {
	if h.lockout == nil {
		return
	}
	if err := h.lockout.RecordFailure(ctx, username, ip); err != nil {
		h.logger.WarnContext(ctx, "failed to record login failure", "error", err)
	}
}

func (h *Handler) resetFailures(ctx context.Context, username, ip string) {
	if h.lockout == nil {
		return
	}
	if err := h.lockout.Reset(ctx, username, ip); err != nil {
		h.logger.WarnContext(ctx, "failed to reset login failures", "error", err)
	}
}

func (h *Handler) tokenCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   h.cookie.CookieSecure,
		HttpOnly: h.cookie.CookieHTTPOnly,
		SameSite: http.SameSiteLaxMode,
	}
}
