// Package buffered provides a non-blocking audit publisher.
//
// Emit only appends to a bounded in-memory ring; a background Run loop drains
// the ring to a Sink in batches. When producers outpace the sink the oldest
// pending events are dropped, so request handling never waits on audit I/O.
package buffered

import (
	"context"
	"log/slog"
	"time"

	audit "cinelog/pkg/platform/audit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	shutdownFlushTimeout = 5 * time.Second
)

// Metrics holds Prometheus metrics for buffered audit publishing.
type Metrics struct {
	Emitted      *prometheus.CounterVec
	Dropped      prometheus.Counter
	SinkFailures prometheus.Counter
}

// NewMetrics registers the audit publisher metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Emitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinelog_audit_events_emitted_total",
			Help: "Audit events accepted by the publisher, by category",
		}, []string{"category"}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_audit_events_dropped_total",
			Help: "Audit events evicted from the buffer before reaching a sink",
		}),
		SinkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinelog_audit_sink_failures_total",
			Help: "Batches the sink failed to persist",
		}),
	}
}

// Publisher buffers events and flushes them to a sink.
type Publisher struct {
	buf       *ring
	sink      audit.Sink
	logger    *slog.Logger
	metrics   *Metrics
	batchSize int
	interval  time.Duration
	now       func() time.Time
	wake      chan struct{}
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithCapacity bounds the number of pending events.
func WithCapacity(n int) Option {
	return func(p *Publisher) { p.buf = newRing(n) }
}

// WithBatchSize sets the maximum events handed to the sink per write.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets how often Run drains the buffer when idle.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// New creates a buffered publisher writing to sink.
func New(sink audit.Sink, opts ...Option) *Publisher {
	p := &Publisher{
		buf:       newRing(defaultCapacity),
		sink:      sink,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultFlushInterval,
		now:       time.Now,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit queues an event. It never blocks.
func (p *Publisher) Emit(_ context.Context, event audit.Event) {
	event = event.Normalize(p.now())
	if evicted := p.buf.push(event); evicted && p.metrics != nil {
		p.metrics.Dropped.Inc()
	}
	if p.metrics != nil {
		p.metrics.Emitted.WithLabelValues(string(event.Category)).Inc()
	}
	if p.buf.len() >= p.batchSize {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Run drains the buffer until ctx is cancelled, then performs a final flush.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
			p.Flush(flushCtx)
			cancel()
			return nil
		case <-ticker.C:
			p.Flush(ctx)
		case <-p.wake:
			p.Flush(ctx)
		}
	}
}

// Flush writes every pending event to the sink. Failed batches are logged and
// discarded.
func (p *Publisher) Flush(ctx context.Context) {
	for {
		batch := p.buf.take(p.batchSize)
		if len(batch) == 0 {
			return
		}
		if err := p.sink.Write(ctx, batch); err != nil {
			if p.metrics != nil {
				p.metrics.SinkFailures.Inc()
			}
			p.logger.ErrorContext(ctx, "failed to write audit batch",
				"error", err,
				"events", len(batch),
			)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Pending returns the number of buffered events.
func (p *Publisher) Pending() int { return p.buf.len() }

// Dropped returns how many events were evicted before reaching the sink.
func (p *Publisher) Dropped() int64 { return p.buf.droppedCount() }
