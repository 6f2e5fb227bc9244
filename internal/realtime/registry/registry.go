// Package registry tracks the live notification connection of each user.
//
// At most one connection is held per user; a newer connection replaces and
// closes the older one. All map access happens under one mutex, and network
// I/O always happens outside it, so a slow peer never stalls other users.
package registry

import (
	"context"
	"log/slog"
	"sync"

	id "cinelog/pkg/domain"
)

const (
	// CloseSuperseded is sent to a connection replaced by a newer one for the
	// same user.
	CloseSuperseded = 4000
	// CloseSupersededReason accompanies CloseSuperseded.
	CloseSupersededReason = "Superseded by a newer connection"

	// CloseGoingAway (RFC 6455 1001) is sent to every connection at shutdown.
	CloseGoingAway       = 1001
	CloseGoingAwayReason = "Server shutting down"
)

// Message is the notification wire payload: {"message":"<text>"}.
type Message struct {
	Message string `json:"message"`
}

// Conn is one live client connection. Implementations must be comparable
// (pointer receivers) and safe for concurrent Send and Close.
type Conn interface {
	Send(ctx context.Context, msg Message) error
	Close(code int, reason string) error
}

// Registry maps users to their live connection.
type Registry struct {
	mu     sync.Mutex
	byUser map[id.UserID]Conn
	byConn map[Conn]id.UserID

	logger  *slog.Logger
	metrics *Metrics
}

// New creates an empty registry. metrics may be nil.
func New(logger *slog.Logger, metrics *Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byUser:  make(map[id.UserID]Conn),
		byConn:  make(map[Conn]id.UserID),
		logger:  logger,
		metrics: metrics,
	}
}

// Connect binds conn to userID. A previous connection for the same user is
// unbound and closed with CloseSuperseded; Connect reports whether that
// happened.
func (r *Registry) Connect(userID id.UserID, conn Conn) bool {
	r.mu.Lock()
	previous, hadPrevious := r.byUser[userID]
	if hadPrevious && previous == conn {
		r.mu.Unlock()
		return false
	}
	if hadPrevious {
		delete(r.byConn, previous)
	}
	// A handle moving between users keeps only its newest binding.
	if otherUser, ok := r.byConn[conn]; ok && r.byUser[otherUser] == conn {
		delete(r.byUser, otherUser)
	}
	r.byUser[userID] = conn
	r.byConn[conn] = userID
	size := len(r.byUser)
	r.mu.Unlock()

	r.metrics.setConnections(size)
	r.logger.Info("realtime connection registered", "user_id", userID.String(), "connections", size)

	if hadPrevious {
		r.metrics.incSuperseded()
		if err := previous.Close(CloseSuperseded, CloseSupersededReason); err != nil {
			r.logger.Debug("failed to close superseded connection", "user_id", userID.String(), "error", err)
		}
	}
	return hadPrevious
}

// Disconnect removes conn if it is still registered. It reports whether an
// entry was removed.
func (r *Registry) Disconnect(conn Conn) bool {
	r.mu.Lock()
	userID, ok := r.byConn[conn]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byConn, conn)
	if r.byUser[userID] == conn {
		delete(r.byUser, userID)
	}
	size := len(r.byUser)
	r.mu.Unlock()

	r.metrics.setConnections(size)
	r.logger.Info("realtime connection removed", "user_id", userID.String(), "connections", size)
	return true
}

// Send delivers msg to userID's live connection, if any. Absence is a silent
// no-op. A failed send removes that connection, never a newer one.
func (r *Registry) Send(ctx context.Context, userID id.UserID, msg Message) {
	r.mu.Lock()
	conn, ok := r.byUser[userID]
	r.mu.Unlock()

	if !ok {
		r.metrics.incDelivery(outcomeOffline)
		r.logger.DebugContext(ctx, "recipient offline, notification dropped", "user_id", userID.String())
		return
	}

	if err := conn.Send(ctx, msg); err != nil {
		r.metrics.incDelivery(outcomeFailed)
		r.logger.WarnContext(ctx, "notification send failed, dropping connection",
			"user_id", userID.String(),
			"error", err,
		)
		r.Disconnect(conn)
		return
	}
	r.metrics.incDelivery(outcomeDelivered)
}

// Close sends a close frame to the peer and unregisters conn.
func (r *Registry) Close(conn Conn, code int, reason string) error {
	err := conn.Close(code, reason)
	r.Disconnect(conn)
	return err
}

// CloseAll unregisters every connection and sends each a close frame. It
// returns how many connections were closed.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.byConn))
	for conn := range r.byConn {
		conns = append(conns, conn)
	}
	r.byUser = make(map[id.UserID]Conn)
	r.byConn = make(map[Conn]id.UserID)
	r.mu.Unlock()

	r.metrics.setConnections(0)
	for _, conn := range conns {
		if err := conn.Close(code, reason); err != nil {
			r.logger.Debug("failed to close connection", "error", err)
		}
	}
	return len(conns)
}

// Len returns the number of connected users.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

// IsConnected reports whether userID has a live connection.
func (r *Registry) IsConnected(userID id.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUser[userID]
	return ok
}
