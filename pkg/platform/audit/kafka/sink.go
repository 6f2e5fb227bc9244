// Package kafka ships audit events to a Kafka-compatible broker using
// franz-go. A circuit breaker guards the broker: after repeated produce
// failures every batch also goes to a fallback sink until the broker
// recovers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "cinelog/pkg/platform/audit"
	"cinelog/pkg/platform/circuit"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultProduceTimeout = 5 * time.Second
	probeTimeout          = time.Second
)

// Producer is the subset of *kgo.Client used by the sink.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink produces one record per event, keyed by subject.
type Sink struct {
	producer Producer
	topic    string
	fallback audit.Sink
	breaker  *circuit.Breaker
	logger   *slog.Logger
	timeout  time.Duration
}

// Option configures the Sink.
type Option func(*Sink)

// WithBreaker overrides the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Sink) { s.breaker = b }
}

// WithLogger sets the logger for breaker transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

// WithProduceTimeout bounds each produce call.
func WithProduceTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSink wraps producer. fallback receives batches the broker rejects.
func NewSink(producer Producer, topic string, fallback audit.Sink, opts ...Option) *Sink {
	s := &Sink{
		producer: producer,
		topic:    topic,
		fallback: fallback,
		breaker:  circuit.New("audit-kafka"),
		logger:   slog.Default(),
		timeout:  defaultProduceTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write sends events to the broker. While the breaker is open the batch is
// written to the fallback first and the broker is only probed.
func (s *Sink) Write(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	records, err := s.records(events)
	if err != nil {
		return err
	}

	if s.breaker.IsOpen() {
		fallbackErr := s.fallback.Write(ctx, events)
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		s.record(ctx, s.producer.ProduceSync(probeCtx, records...).FirstErr())
		return fallbackErr
	}

	produceCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	produceErr := s.producer.ProduceSync(produceCtx, records...).FirstErr()
	s.record(ctx, produceErr)
	if produceErr == nil {
		return nil
	}
	if err := s.fallback.Write(ctx, events); err != nil {
		return errors.Join(produceErr, err)
	}
	return nil
}

// State reports the breaker position.
func (s *Sink) State() circuit.State { return s.breaker.State() }

func (s *Sink) record(ctx context.Context, err error) {
	if err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "audit broker recovered", "breaker", s.breaker.Name())
		}
		return
	}
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "audit broker unavailable, using fallback sink",
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
}

func (s *Sink) records(events []audit.Event) ([]*kgo.Record, error) {
	out := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode audit event: %w", err)
		}
		out = append(out, &kgo.Record{
			Topic:     s.topic,
			Key:       []byte(e.Subject),
			Value:     payload,
			Timestamp: e.Timestamp,
			Headers: []kgo.RecordHeader{
				{Key: "category", Value: []byte(e.Category)},
				{Key: "action", Value: []byte(e.Action)},
			},
		})
	}
	return out, nil
}

// NewClient dials brokers with a default produce topic.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topic if it does not already exist.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}
