package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	defaultAckWait    = 30 * time.Second
	defaultMaxDeliver = 5
)

// ConsumerOptions describes a durable pull consumer. Zero AckWait and
// MaxDeliver fall back to 30s and 5 deliveries.
type ConsumerOptions struct {
	Stream        string
	Durable       string
	FilterSubject string
	AckWait       time.Duration
	MaxDeliver    int
}

// AuditPersisterOptions is the consumer that writes audit events to Postgres.
// Audit inserts are idempotent on the event ID, so redelivery is safe.
var AuditPersisterOptions = ConsumerOptions{
	Stream:        StreamEvents,
	Durable:       "audit-persister",
	FilterSubject: SubjectAuditEvent,
}

func (o ConsumerOptions) config() jetstream.ConsumerConfig {
	cfg := jetstream.ConsumerConfig{
		Durable:       o.Durable,
		FilterSubject: o.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       o.AckWait,
		MaxDeliver:    o.MaxDeliver,
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = defaultAckWait
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = defaultMaxDeliver
	}
	return cfg
}

// ConsumerManager handles durable consumer creation and retrieval.
type ConsumerManager struct {
	js jetstream.JetStream
}

func NewConsumerManager(js jetstream.JetStream) *ConsumerManager {
	return &ConsumerManager{js: js}
}

// EnsureConsumer creates or updates the durable consumer described by opts.
func (cm *ConsumerManager) EnsureConsumer(ctx context.Context, opts ConsumerOptions) (jetstream.Consumer, error) {
	if opts.Stream == "" || opts.Durable == "" {
		return nil, fmt.Errorf("ensuring consumer: stream and durable name are required")
	}

	consumer, err := cm.js.CreateOrUpdateConsumer(ctx, opts.Stream, opts.config())
	if err != nil {
		return nil, fmt.Errorf("ensuring consumer %s on %s: %w", opts.Durable, opts.Stream, err)
	}
	return consumer, nil
}
