// Package ratelimit throttles password guessing. Failed logins are counted
// per username and client IP in a sliding window; once the window holds
// MaxFailures the pair is locked until the oldest failure ages out.
package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	audit "cinelog/pkg/platform/audit"
	"cinelog/pkg/requestcontext"
)

// Store keeps failure timestamps per key.
type Store interface {
	// Failures counts failures at or after since and returns the oldest one.
	Failures(ctx context.Context, key string, since time.Time) (count int, oldest time.Time, err error)
	// RecordFailure adds a failure at at. ttl bounds how long the key lives.
	RecordFailure(ctx context.Context, key string, at time.Time, ttl time.Duration) error
	Clear(ctx context.Context, key string) error
}

// Status is the lockout state for one username and IP.
type Status struct {
	Locked     bool
	Failures   int
	RetryAfter time.Duration
}

type Lockout struct {
	store       Store
	maxFailures int
	window      time.Duration
	logger      *slog.Logger
	audit       audit.Publisher
	metrics     *Metrics
	now         func() time.Time
}

type Option func(*Lockout)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Lockout) { l.logger = logger }
}

// WithAudit emits a security event each time a login is refused.
func WithAudit(p audit.Publisher) Option {
	return func(l *Lockout) { l.audit = p }
}

func WithMetrics(m *Metrics) Option {
	return func(l *Lockout) { l.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(l *Lockout) { l.now = now }
}

func New(store Store, maxFailures int, window time.Duration, opts ...Option) *Lockout {
	l := &Lockout{
		store:       store,
		maxFailures: maxFailures,
		window:      window,
		logger:      slog.Default(),
		audit:       audit.Nop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key builds the store key. ':' in the username is escaped so a crafted
// name cannot collide with another user's key.
func Key(username, ip string) string {
	username = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(username)), ":", "_")
	return "login:" + username + ":" + ip
}

// Check reports whether username may attempt a login from ip. Store errors
// are returned; callers decide whether to fail open.
func (l *Lockout) Check(ctx context.Context, username, ip string) (Status, error) {
	now := l.now()
	count, oldest, err := l.store.Failures(ctx, Key(username, ip), now.Add(-l.window))
	if err != nil {
		return Status{}, err
	}
	st := Status{Failures: count}
	if count < l.maxFailures {
		return st, nil
	}

	st.Locked = true
	st.RetryAfter = oldest.Add(l.window).Sub(now)
	if st.RetryAfter < time.Second {
		st.RetryAfter = time.Second
	}
	l.metrics.incLocked()
	l.logger.WarnContext(ctx, "login refused, too many failures",
		"failures", count,
		"retry_after", st.RetryAfter,
		"request_id", requestcontext.RequestID(ctx),
	)
	l.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionLoginLocked,
		Subject:   username,
		IP:        ip,
		RequestID: requestcontext.RequestID(ctx),
	})
	return st, nil
}

// RecordFailure counts one failed attempt.
func (l *Lockout) RecordFailure(ctx context.Context, username, ip string) error {
	l.metrics.incFailure()
	return l.store.RecordFailure(ctx, Key(username, ip), l.now(), l.window)
}

// Reset forgets failures after a successful login.
func (l *Lockout) Reset(ctx context.Context, username, ip string) error {
	return l.store.Clear(ctx, Key(username, ip))
}
