package guardrail

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mealwise/mealwise/internal/config"
	"github.com/mealwise/mealwise/internal/kv"
	"github.com/mealwise/mealwise/internal/metrics"
)

// QuotaChecker tracks successful generations per user per UTC day.
type QuotaChecker struct {
	accessor  kv.Accessor
	limit     int
	namespace string
	now       func() time.Time
}

// NewQuotaChecker creates a QuotaChecker using cfg.DailyLimit.
func NewQuotaChecker(accessor kv.Accessor, cfg config.GuardrailConfig) *QuotaChecker {
	return &QuotaChecker{
		accessor:  accessor,
		limit:     cfg.DailyLimit,
		namespace: cfg.Namespace,
		now:       time.Now,
	}
}

// CheckDailyQuota reports whether userID may generate another image today.
// It never consumes quota. When the backend is unreachable or errors, the
// result is permissive and flagged IsFallback.
func (q *QuotaChecker) CheckDailyQuota(ctx context.Context, userID string) QuotaResult {
	now := q.now().UTC()
	resetAt := nextUTCMidnight(now)
	fallback := QuotaResult{
		Allowed:    true,
		Remaining:  q.limit,
		Limit:      q.limit,
		ResetAt:    resetAt,
		IsFallback: true,
	}

	store := q.accessor.Handle(ctx)
	if store == nil {
		metrics.GuardrailFallbacksTotal.WithLabelValues("quota").Inc()
		return fallback
	}

	key := quotaKey(q.namespace, userID, now)
	used := 0
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		slog.Warn("guardrail: quota read failed, allowing request", "user_id", userID, "error", err)
		metrics.GuardrailFallbacksTotal.WithLabelValues("quota").Inc()
		return fallback
	default:
		used = parseCount(raw)
	}

	return QuotaResult{
		Allowed:   used < q.limit,
		Remaining: max(0, q.limit-used),
		Used:      used,
		Limit:     q.limit,
		ResetAt:   resetAt,
	}
}

// IncrementDailyUsage records one successful generation for userID. It is
// best-effort: failures are logged and swallowed, under-counting usage.
func (q *QuotaChecker) IncrementDailyUsage(ctx context.Context, userID string) {
	store := q.accessor.Handle(ctx)
	if store == nil {
		return
	}

	now := q.now().UTC()
	key := quotaKey(q.namespace, userID, now)
	if _, err := store.IncrExpire(ctx, key, ttlUntilMidnight(now)); err != nil {
		slog.Warn("guardrail: quota increment failed", "user_id", userID, "error", err)
	}
}

// ttlUntilMidnight rounds up to whole seconds and never returns less than 1s.
func ttlUntilMidnight(now time.Time) time.Duration {
	remaining := nextUTCMidnight(now).Sub(now)
	secs := (remaining + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
