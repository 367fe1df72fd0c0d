package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	inats "github.com/mealwise/mealwise/internal/nats"
	"github.com/mealwise/mealwise/internal/metrics"
)

// Recorder stores an audit entry. Recording is best-effort: implementations
// log their own failures and never fail the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Multi fans an entry out to every recorder.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, e Entry) {
	for _, r := range m {
		r.Record(ctx, e)
	}
}

// LogRecorder writes entries to the structured log.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a LogRecorder. A nil logger uses slog.Default().
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, e Entry) {
	level := slog.LevelInfo
	switch e.Severity {
	case SeverityWarn:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}

	r.logger.Log(ctx, level, "image generation audit",
		"audit_id", e.ID,
		"user_id", e.UserID,
		"outcome", e.Outcome,
		"message", e.Message,
		"ip_hash", e.IPHash,
		"model", e.Details.Model,
		"prompt_length", e.Details.PromptLength,
		"daily_used", e.Details.DailyUsed,
		"daily_limit", e.Details.DailyLimit,
		"rate_remaining", e.Details.RateRemaining,
		"fallback", e.Details.Fallback,
	)
}

type eventPublisher interface {
	PublishAuditEvent(ctx context.Context, event inats.AuditEvent) error
}

// PublishingRecorder publishes entries to NATS for asynchronous persistence.
type PublishingRecorder struct {
	publisher eventPublisher
}

// NewPublishingRecorder creates a PublishingRecorder.
func NewPublishingRecorder(publisher eventPublisher) *PublishingRecorder {
	return &PublishingRecorder{publisher: publisher}
}

func (r *PublishingRecorder) Record(ctx context.Context, e Entry) {
	event, err := EventFromEntry(e)
	if err != nil {
		slog.Error("audit: building event", "error", err, "audit_id", e.ID)
		metrics.AuditWriteFailuresTotal.WithLabelValues("nats").Inc()
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := r.publisher.PublishAuditEvent(ctx, event); err != nil {
		slog.Error("audit: publishing event", "error", err, "audit_id", e.ID)
		metrics.AuditWriteFailuresTotal.WithLabelValues("nats").Inc()
	}
}

type inserter interface {
	Insert(ctx context.Context, e *Entry) error
}

// RepositoryRecorder writes entries straight to the database. Used when
// NATS is not configured.
type RepositoryRecorder struct {
	repo inserter
}

// NewRepositoryRecorder creates a RepositoryRecorder.
func NewRepositoryRecorder(repo inserter) *RepositoryRecorder {
	return &RepositoryRecorder{repo: repo}
}

func (r *RepositoryRecorder) Record(ctx context.Context, e Entry) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := r.repo.Insert(ctx, &e); err != nil {
		slog.Error("audit: persisting entry", "error", err, "audit_id", e.ID)
		metrics.AuditWriteFailuresTotal.WithLabelValues("postgres").Inc()
	}
}

// detached keeps request values but outlives a cancelled request, bounded
// by a short timeout.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

// EventFromEntry converts an Entry to its wire form.
func EventFromEntry(e Entry) (inats.AuditEvent, error) {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return inats.AuditEvent{}, err
	}
	return inats.AuditEvent{
		ID:        e.ID.String(),
		UserID:    e.UserID,
		Outcome:   e.Outcome,
		Severity:  e.Severity,
		Message:   e.Message,
		IPHash:    e.IPHash,
		Details:   details,
		Timestamp: e.CreatedAt,
	}, nil
}
