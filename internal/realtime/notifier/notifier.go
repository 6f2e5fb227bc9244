// Package notifier turns social events into user-facing notification text
// and hands them to the connection registry. Delivery is best effort: an
// offline recipient or a broken connection never fails the mutation that
// produced the event.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"cinelog/internal/realtime/registry"
	id "cinelog/pkg/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Kind identifies the social action behind a notification.
type Kind string

const (
	KindFollow     Kind = "follow"
	KindReviewLike Kind = "review_like"
)

// Event is emitted once per newly created or reactivated follow or like.
type Event struct {
	Kind      Kind
	Actor     id.UserID
	ActorName string
	Recipient id.UserID
	// ReviewID is set for KindReviewLike.
	ReviewID id.ReviewID
}

// Sender delivers a message to a user's live connection, if any.
type Sender interface {
	Send(ctx context.Context, userID id.UserID, msg registry.Message)
}

// Notifier formats events and delivers them.
type Notifier struct {
	sender Sender
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Notifier delivering through sender.
func New(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		sender: sender,
		logger: logger,
		tracer: otel.Tracer("cinelog/notifier"),
	}
}

// Notify delivers the message for event, including to an actor acting on
// their own content. Unknown kinds are dropped.
func (n *Notifier) Notify(ctx context.Context, event Event) {
	ctx, span := n.tracer.Start(ctx, "notifier.Notify", trace.WithAttributes(
		attribute.String("notification.kind", string(event.Kind)),
	))
	defer span.End()

	text, ok := Format(event)
	if !ok {
		n.logger.WarnContext(ctx, "dropping notification of unknown kind", "kind", event.Kind)
		return
	}
	n.sender.Send(ctx, event.Recipient, registry.Message{Message: text})
}

// Format renders the notification text for event.
func Format(event Event) (string, bool) {
	switch event.Kind {
	case KindFollow:
		return fmt.Sprintf("%s followed you.", event.ActorName), true
	case KindReviewLike:
		return fmt.Sprintf("%s liked your review.", event.ActorName), true
	default:
		return "", false
	}
}
