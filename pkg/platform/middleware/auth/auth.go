// Package auth is the session-token gate in front of every protected route
// and the notification socket handshake.
//
// Authenticate runs a linear check (token present, token valid, identity
// exists) and returns a Decision naming either the resolved identity or the
// first failing reason. Transports map the reason to their own rejection:
// the HTTP middleware writes a 401 envelope, the socket handler closes with
// an application close code. Clients never learn which check failed.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	id "cinelog/pkg/domain"
	dErrors "cinelog/pkg/domain-errors"
	audit "cinelog/pkg/platform/audit"
	"cinelog/pkg/platform/httputil"
	"cinelog/pkg/platform/sentinel"
	"cinelog/pkg/requestcontext"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AccessTokenCookie carries the access token on HTTP requests.
const AccessTokenCookie = "access_token"

// RefreshTokenCookie carries the refresh token. The gate never reads it.
const RefreshTokenCookie = "refresh_token"

// TokenClaims is what the gate needs from a verified token.
type TokenClaims struct {
	Subject  string
	Username string
}

// TokenVerifier checks a token's signature and expiry. Errors carry
// CodeTokenMalformed, CodeTokenSignatureInvalid or CodeTokenExpired.
type TokenVerifier interface {
	Verify(token string) (*TokenClaims, error)
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID   id.UserID
	Username string
}

// IdentityLookup resolves a token subject against persisted users. Absence is
// reported as sentinel.ErrNotFound or a CodeUserNotFound/CodeNotFound error.
type IdentityLookup interface {
	FindIdentity(ctx context.Context, userID id.UserID) (*Identity, error)
}

// Reason names the outcome of an authentication attempt.
type Reason string

const (
	ReasonNone                  Reason = "allowed"
	ReasonMissingToken          Reason = "missing_token"
	ReasonTokenMalformed        Reason = "token_malformed"
	ReasonTokenSignatureInvalid Reason = "token_signature_invalid"
	ReasonTokenExpired          Reason = "token_expired"
	ReasonUserNotFound          Reason = "user_not_found"
	ReasonInternal              Reason = "internal_error"
)

// Code maps the reason onto the domain error vocabulary.
func (r Reason) Code() dErrors.Code {
	switch r {
	case ReasonMissingToken:
		return dErrors.CodeMissingToken
	case ReasonTokenMalformed:
		return dErrors.CodeTokenMalformed
	case ReasonTokenSignatureInvalid:
		return dErrors.CodeTokenSignatureInvalid
	case ReasonTokenExpired:
		return dErrors.CodeTokenExpired
	case ReasonUserNotFound:
		return dErrors.CodeUserNotFound
	default:
		return dErrors.CodeInternal
	}
}

// Decision is the tagged result of Authenticate. Identity is set only when
// Reason is ReasonNone.
type Decision struct {
	Identity *Identity
	Reason   Reason
	// Err is the underlying cause, for logs only.
	Err error
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Reason == ReasonNone && d.Identity != nil
}

// AsError returns the decision as a domain error, or nil when allowed.
func (d Decision) AsError() error {
	if d.Allowed() {
		return nil
	}
	return dErrors.Wrap(d.Err, d.Reason.Code(), "authentication failed")
}

func allow(identity *Identity) Decision {
	return Decision{Identity: identity, Reason: ReasonNone}
}

func deny(reason Reason, err error) Decision {
	return Decision{Reason: reason, Err: err}
}

// Route is the gate classification of a request path.
type Route int

const (
	// RouteUngated paths are outside the gate's prefixes entirely.
	RouteUngated Route = iota
	// RoutePublic paths match a protected prefix but are listed as exceptions.
	RoutePublic
	// RouteProtected paths require a valid token and an existing identity.
	RouteProtected
)

func (r Route) String() string {
	switch r {
	case RoutePublic:
		return "public"
	case RouteProtected:
		return "protected"
	default:
		return "ungated"
	}
}

// Policy lists which paths the gate guards. Public paths match exactly.
// Protected prefixes match whole path segments, so "/users" covers
// "/users/me" but not "/usersettings".
type Policy struct {
	ProtectedPrefixes []string
	PublicPaths       []string
}

// DefaultPolicy guards users, reviews and likes while leaving account
// creation, listing, search and login public.
func DefaultPolicy() Policy {
	return Policy{
		ProtectedPrefixes: []string{"/users", "/reviews", "/likes"},
		PublicPaths:       []string{"/users/login", "/users", "/users/search"},
	}
}

// Gate authenticates requests against a verifier and an identity store.
type Gate struct {
	verifier TokenVerifier
	lookup   IdentityLookup
	logger   *slog.Logger
	policy   Policy
	public   map[string]struct{}
	audit    audit.Publisher
	metrics  *Metrics
	tracer   trace.Tracer
}

// Option configures a Gate.
type Option func(*Gate)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(g *Gate) { g.policy = p }
}

// WithAudit emits a security event for every rejection.
func WithAudit(p audit.Publisher) Option {
	return func(g *Gate) { g.audit = p }
}

// WithMetrics records every decision.
func WithMetrics(m *Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// NewGate builds a Gate.
func NewGate(verifier TokenVerifier, lookup IdentityLookup, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		verifier: verifier,
		lookup:   lookup,
		logger:   logger,
		policy:   DefaultPolicy(),
		audit:    audit.Nop{},
		tracer:   otel.Tracer("cinelog/auth"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.public = make(map[string]struct{}, len(g.policy.PublicPaths))
	for _, p := range g.policy.PublicPaths {
		g.public[normalizePath(p)] = struct{}{}
	}
	return g
}

// Classify returns how the gate treats path.
func (g *Gate) Classify(path string) Route {
	path = normalizePath(path)
	if _, ok := g.public[path]; ok {
		return RoutePublic
	}
	for _, prefix := range g.policy.ProtectedPrefixes {
		prefix = normalizePath(prefix)
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return RouteProtected
		}
	}
	return RouteUngated
}

func normalizePath(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

// Authenticate checks token and resolves its subject. Exactly one Decision is
// returned for every input; nothing panics.
func (g *Gate) Authenticate(ctx context.Context, token string) Decision {
	ctx, span := g.tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	d := g.authenticate(ctx, token)
	span.SetAttributes(attribute.String("auth.outcome", string(d.Reason)))
	return d
}

func (g *Gate) authenticate(ctx context.Context, token string) Decision {
	if token == "" {
		return deny(ReasonMissingToken, nil)
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		switch dErrors.CodeOf(err) {
		case dErrors.CodeTokenExpired:
			return deny(ReasonTokenExpired, err)
		case dErrors.CodeTokenSignatureInvalid:
			return deny(ReasonTokenSignatureInvalid, err)
		case dErrors.CodeTokenMalformed:
			return deny(ReasonTokenMalformed, err)
		default:
			return deny(ReasonInternal, err)
		}
	}

	// A validly signed token whose subject is not a user id names nobody.
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return deny(ReasonUserNotFound, err)
	}

	identity, err := g.lookup.FindIdentity(ctx, userID)
	if err != nil {
		if isAbsent(err) {
			return deny(ReasonUserNotFound, err)
		}
		return deny(ReasonInternal, err)
	}
	if identity == nil {
		return deny(ReasonUserNotFound, nil)
	}
	return allow(identity)
}

func isAbsent(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) ||
		dErrors.HasCode(err, dErrors.CodeUserNotFound) ||
		dErrors.HasCode(err, dErrors.CodeNotFound)
}

// Middleware enforces the gate on protected routes. The token is read from
// the access_token cookie. Rejections are written before next runs and never
// attach an identity.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Classify(r.URL.Path) != RouteProtected {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		d := g.Authenticate(ctx, cookieToken(r))
		g.observe(ctx, "http", r.URL.Path, d)
		if !d.Allowed() {
			httputil.WriteError(w, d.AsError())
			return
		}

		ctx = requestcontext.WithUserID(ctx, d.Identity.UserID)
		ctx = requestcontext.WithUsername(ctx, d.Identity.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errNotBearer = errors.New("authorization header is not a bearer token")

// AuthenticateHandshake authenticates a socket upgrade request using the
// Authorization bearer header. An absent header is a missing token; a header
// that is not "Bearer <token>" is malformed. The caller maps the Decision to
// a close frame.
func (g *Gate) AuthenticateHandshake(r *http.Request) Decision {
	ctx := r.Context()
	var d Decision
	token, present := BearerToken(r)
	if present && token == "" {
		d = deny(ReasonTokenMalformed, errNotBearer)
	} else {
		d = g.Authenticate(ctx, token)
	}
	g.observe(ctx, "handshake", r.URL.Path, d)
	return d
}

func cookieToken(r *http.Request) string {
	c, err := r.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// present reports whether the header was sent at all, so callers can tell a
// missing header from an unusable one.
func BearerToken(r *http.Request) (token string, present bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(rest), true
}

func (g *Gate) observe(ctx context.Context, transport, path string, d Decision) {
	g.metrics.record(transport, d.Reason)
	if d.Allowed() {
		return
	}

	requestID := requestcontext.RequestID(ctx)
	if d.Reason == ReasonInternal {
		g.logger.ErrorContext(ctx, "authentication failed - internal error",
			"error", d.Err,
			"transport", transport,
			"request_id", requestID,
		)
	} else {
		g.logger.WarnContext(ctx, "unauthorized access",
			"reason", d.Reason,
			"error", d.Err,
			"transport", transport,
			"path", path,
			"request_id", requestID,
		)
	}

	action := audit.ActionAuthFailed
	if transport == "handshake" {
		action = audit.ActionHandshakeRejected
	}
	g.audit.Emit(ctx, audit.Event{
		Action:    action,
		Reason:    string(d.Reason),
		Route:     path,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestID,
	})
}
