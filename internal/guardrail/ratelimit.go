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

// RateLimiter enforces a fixed 60-second window per (user, client IP).
type RateLimiter struct {
	accessor  kv.Accessor
	limit     int
	namespace string
	now       func() time.Time
}

// NewRateLimiter creates a RateLimiter using cfg.RateLimitPerMinute.
func NewRateLimiter(accessor kv.Accessor, cfg config.GuardrailConfig) *RateLimiter {
	return &RateLimiter{
		accessor:  accessor,
		limit:     cfg.RateLimitPerMinute,
		namespace: cfg.Namespace,
		now:       time.Now,
	}
}

// CheckRateLimit counts one attempt and reports whether it is within the
// limit. A count equal to the limit is still allowed.
func (rl *RateLimiter) CheckRateLimit(ctx context.Context, userID, clientIP string) RateLimitResult {
	now := rl.now()

	store := rl.accessor.Handle(ctx)
	if store == nil {
		metrics.GuardrailFallbacksTotal.WithLabelValues("rate_limit").Inc()
		return rl.fallback(now)
	}

	key := rateKey(rl.namespace, userID, clientIP)
	count, err := store.IncrExpire(ctx, key, RateWindow)
	if err != nil {
		slog.Warn("guardrail: rate limit increment failed, allowing request",
			"user_id", userID, "client_ip", clientIP, "error", err)
		metrics.GuardrailFallbacksTotal.WithLabelValues("rate_limit").Inc()
		return rl.fallback(now)
	}

	return RateLimitResult{
		Allowed:       count <= int64(rl.limit),
		Remaining:     max(0, rl.limit-int(count)),
		Limit:         rl.limit,
		ResetAt:       rl.resetAt(ctx, store, key, now),
		WindowSeconds: int(RateWindow / time.Second),
	}
}

// GetRateLimitStatus reports the current window without counting an attempt.
func (rl *RateLimiter) GetRateLimitStatus(ctx context.Context, userID, clientIP string) RateLimitResult {
	now := rl.now()

	store := rl.accessor.Handle(ctx)
	if store == nil {
		return rl.fallback(now)
	}

	key := rateKey(rl.namespace, userID, clientIP)
	count := 0
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		slog.Warn("guardrail: rate limit status read failed", "user_id", userID, "error", err)
		return rl.fallback(now)
	default:
		count = parseCount(raw)
	}

	return RateLimitResult{
		Allowed:       count < rl.limit,
		Remaining:     max(0, rl.limit-count),
		Limit:         rl.limit,
		ResetAt:       rl.resetAt(ctx, store, key, now),
		WindowSeconds: int(RateWindow / time.Second),
	}
}

func (rl *RateLimiter) fallback(now time.Time) RateLimitResult {
	return RateLimitResult{
		Allowed:       true,
		Remaining:     rl.limit,
		Limit:         rl.limit,
		ResetAt:       now.Add(RateWindow),
		WindowSeconds: int(RateWindow / time.Second),
		IsFallback:    true,
	}
}

func (rl *RateLimiter) resetAt(ctx context.Context, store kv.Store, key string, now time.Time) time.Time {
	ttl, err := store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return now.Add(RateWindow)
	}
	return now.Add(ttl)
}
