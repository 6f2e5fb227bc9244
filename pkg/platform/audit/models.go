package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can route or retain them differently.
type EventCategory string

const (
	// CategorySecurity covers authentication failures and rejected socket
	// handshakes. These feed alerting.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity such as logins and
	// realtime connection lifecycle.
	CategoryOperations EventCategory = "operations"
)

// Action names what happened.
type Action string

const (
	ActionAuthFailed         Action = "auth_failed"
	ActionHandshakeRejected  Action = "handshake_rejected"
	ActionLoginSucceeded     Action = "login_succeeded"
	ActionLoginFailed        Action = "login_failed"
	ActionUserCreated        Action = "user_created"
	ActionSocketConnected    Action = "socket_connected"
	ActionSocketDisconnected Action = "socket_disconnected"
	ActionSocketSuperseded   Action = "socket_superseded"
	ActionLoginLocked        Action = "login_locked"
)

var actionCategories = map[Action]EventCategory{
	ActionAuthFailed:        CategorySecurity,
	ActionHandshakeRejected: CategorySecurity,
	ActionLoginFailed:       CategorySecurity,
	ActionLoginLocked:       CategorySecurity,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is emitted from request handling to capture security-relevant and
// operational actions. Keep it transport-agnostic so sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    Action        `json:"action"`
	Subject   string        `json:"subject,omitempty"` // user id or username when known
	Reason    string        `json:"reason,omitempty"`
	Route     string        `json:"route,omitempty"`
	IP        string        `json:"ip,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Severity  Severity      `json:"severity,omitempty"`
}

// Normalize fills the category, timestamp and severity when the caller left
// them empty.
func (e Event) Normalize(now time.Time) Event {
	if e.Category == "" {
		e.Category = e.Action.Category()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.Severity == "" {
		if e.Category == CategorySecurity {
			e.Severity = SeverityWarning
		} else {
			e.Severity = SeverityInfo
		}
	}
	return e
}

// Publisher accepts events without blocking the caller. Emission never fails
// a request.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// Sink persists a batch of events.
type Sink interface {
	Write(ctx context.Context, events []Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}
