package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/mealwise/mealwise/internal/nats"
)

// Consumer listens on the audit event NATS subject and persists entries to the database.
type Consumer struct {
	repo        inserter
	consumerMgr *inats.ConsumerManager
}

// NewConsumer creates a new audit event Consumer.
func NewConsumer(repo *Repository, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	opts := inats.AuditPersisterOptions
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, opts)
	if err != nil {
		return err
	}

	slog.Info("audit consumer started", "consumer", opts.Durable, "subject", opts.FilterSubject)

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("audit consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

type ackable interface {
	Data() []byte
	Ack() error
	Nak() error
}

func (c *Consumer) handleEvent(ctx context.Context, msg ackable) {
	var event inats.AuditEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		// Redelivery cannot fix a malformed payload.
		slog.Error("audit consumer: unmarshaling event", "error", err)
		_ = msg.Ack()
		return
	}

	entry, err := EntryFromEvent(event)
	if err != nil {
		slog.Error("audit consumer: converting event", "error", err, "event_id", event.ID)
		_ = msg.Ack()
		return
	}

	if err := c.repo.Insert(ctx, &entry); err != nil {
		slog.Error("audit consumer: persisting entry", "error", err, "outcome", event.Outcome)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("audit consumer: persisted event",
		"outcome", event.Outcome,
		"user_id", event.UserID,
		"audit_id", entry.ID,
	)
}

// EntryFromEvent converts a wire event back into an Entry. An event without
// a parseable ID is assigned a fresh one.
func EntryFromEvent(event inats.AuditEvent) (Entry, error) {
	e := Entry{
		UserID:    event.UserID,
		Outcome:   event.Outcome,
		Severity:  event.Severity,
		Message:   event.Message,
		IPHash:    event.IPHash,
		CreatedAt: event.Timestamp,
	}

	if id, err := uuid.Parse(event.ID); err == nil {
		e.ID = id
	} else {
		e.ID = uuid.New()
	}

	if len(event.Details) > 0 {
		if err := json.Unmarshal(event.Details, &e.Details); err != nil {
			return Entry{}, fmt.Errorf("decoding details: %w", err)
		}
	}
	return e, nil
}
