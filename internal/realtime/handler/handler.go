// Package handler serves the notification socket. A client authenticates
// the upgrade request with a bearer token, is bound to its user in the
// connection registry, and then receives {"message": "..."} frames until
// either side closes.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cinelog/internal/platform/config"
	"cinelog/internal/realtime/registry"
	id "cinelog/pkg/domain"
	audit "cinelog/pkg/platform/audit"
	"cinelog/pkg/platform/middleware/auth"
	"cinelog/pkg/platform/middleware/metadata"
	"cinelog/pkg/requestcontext"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Close codes sent on the notification socket.
const (
	CloseUnauthorized = 4001
	CloseInternal     = websocket.CloseInternalServerErr
)

// Close reasons for CloseUnauthorized.
const (
	ReasonHeaderRequired = "Authorization header required"
	ReasonInvalidToken   = "Invalid token"
	ReasonUserNotFound   = "User not found"
)

// Authenticator resolves the identity behind a socket upgrade request.
type Authenticator interface {
	AuthenticateHandshake(r *http.Request) auth.Decision
}

// Registry binds live connections to users.
type Registry interface {
	Connect(userID id.UserID, conn registry.Conn) bool
	Disconnect(conn registry.Conn) bool
}

// Handler upgrades and serves notification sockets.
type Handler struct {
	auth     Authenticator
	registry Registry
	logger   *slog.Logger
	audit    audit.Publisher
	upgrader websocket.Upgrader

	writeTimeout time.Duration
	pingInterval time.Duration
	readLimit    int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithAudit emits connection lifecycle events.
func WithAudit(p audit.Publisher) Option {
	return func(h *Handler) { h.audit = p }
}

// WithCheckOrigin overrides the upgrader origin check. The default accepts
// any origin because the socket is authenticated by header, not cookie.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Handler) { h.upgrader.CheckOrigin = fn }
}

// New creates a Handler.
func New(authenticator Authenticator, reg Registry, logger *slog.Logger, cfg config.Realtime, opts ...Option) *Handler {
	h := &Handler{
		auth:     authenticator,
		registry: reg,
		logger:   logger,
		audit:    audit.Nop{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.PingInterval,
		readLimit:    cfg.ReadLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the socket route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications", h.HandleNotifications)
}

// HandleNotifications authenticates, upgrades and serves one socket.
func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	decision := h.auth.AuthenticateHandshake(r)

	// The close code is part of the protocol, so rejected clients are still
	// upgraded and then closed.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"error", err,
			"request_id", requestID,
		)
		return
	}
	ws := newWSConn(conn, h.writeTimeout)

	if !decision.Allowed() {
		code, reason := CloseFor(decision.Reason)
		_ = ws.Close(code, reason)
		return
	}

	userID := decision.Identity.UserID
	superseded := h.registry.Connect(userID, ws)
	defer h.registry.Disconnect(ws)

	device := metadata.DeviceFromUserAgent(r.UserAgent())
	h.logger.InfoContext(ctx, "notification socket opened",
		"user_id", userID.String(),
		"browser", device.Browser,
		"os", device.OS,
		"mobile", device.Mobile,
		"request_id", requestID,
	)
	h.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionSocketConnected,
		Subject:   userID.String(),
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestID,
	})
	if superseded {
		h.audit.Emit(ctx, audit.Event{
			Action:    audit.ActionSocketSuperseded,
			Subject:   userID.String(),
			RequestID: requestID,
		})
	}

	h.serve(ctx, conn, ws)

	h.logger.InfoContext(ctx, "notification socket closed",
		"user_id", userID.String(),
		"request_id", requestID,
	)
	h.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionSocketDisconnected,
		Subject:   userID.String(),
		RequestID: requestID,
	})
}

// serve keeps reading until the peer goes away. Inbound frames carry no
// meaning; reading is what surfaces close frames and dead peers.
func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, ws *wsConn) {
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	done := make(chan struct{})
	defer close(done)

	if h.pingInterval > 0 {
		// Peer must answer a ping within two intervals.
		idle := 2 * h.pingInterval
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(idle))
		})
		go h.pingLoop(ws, done)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, CloseUnauthorized, registry.CloseSuperseded) {
				h.logger.DebugContext(ctx, "notification socket read ended", "error", err)
			}
			_ = ws.Close(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (h *Handler) pingLoop(ws *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}

// CloseFor maps a rejected handshake to its close code and reason.
func CloseFor(reason auth.Reason) (int, string) {
	switch reason {
	case auth.ReasonMissingToken:
		return CloseUnauthorized, ReasonHeaderRequired
	case auth.ReasonUserNotFound:
		return CloseUnauthorized, ReasonUserNotFound
	case auth.ReasonInternal:
		return CloseInternal, "Internal error"
	default:
		return CloseUnauthorized, ReasonInvalidToken
	}
}
