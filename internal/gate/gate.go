// Package gate authorizes and performs admin image generation behind the
// daily quota and rate-limit guardrails.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mealwise/mealwise/internal/audit"
	"github.com/mealwise/mealwise/internal/config"
	"github.com/mealwise/mealwise/internal/guardrail"
	"github.com/mealwise/mealwise/internal/imagegen"
	"github.com/mealwise/mealwise/internal/metrics"
)

type QuotaChecker interface {
	CheckDailyQuota(ctx context.Context, userID string) guardrail.QuotaResult
	IncrementDailyUsage(ctx context.Context, userID string)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID, clientIP string) guardrail.RateLimitResult
	GetRateLimitStatus(ctx context.Context, userID, clientIP string) guardrail.RateLimitResult
}

type Generator interface {
	Configured() bool
	Generate(ctx context.Context, req imagegen.Request) (*imagegen.Image, error)
}

// Result is a successful generation. Daily reflects the increment made for
// this image.
type Result struct {
	Image     *imagegen.Image
	Daily     guardrail.QuotaResult
	RateLimit guardrail.RateLimitResult
}

// Status is the read-only view shown on the admin dashboard.
type Status struct {
	Daily           guardrail.QuotaResult     `json:"daily"`
	RateLimit       guardrail.RateLimitResult `json:"rate_limit"`
	MaintenanceMode bool                      `json:"maintenance_mode"`
	Configured      bool                      `json:"configured"`
}

// Gate runs the generation state machine.
type Gate struct {
	quota       QuotaChecker
	limiter     RateLimiter
	generator   Generator
	recorder    audit.Recorder
	hasher      *audit.IPHasher
	maintenance bool
	now         func() time.Time
}

// New creates a Gate. MaintenanceMode is read once from cfg.
func New(cfg config.GuardrailConfig, quota QuotaChecker, limiter RateLimiter, generator Generator,
	recorder audit.Recorder, hasher *audit.IPHasher) *Gate {
	return &Gate{
		quota:       quota,
		limiter:     limiter,
		generator:   generator,
		recorder:    recorder,
		hasher:      hasher,
		maintenance: cfg.MaintenanceMode,
		now:         time.Now,
	}
}

// Generate authorizes and performs one generation for userID. Every call
// ends in exactly one outcome, which is counted and audited once. Non-success
// outcomes are returned as *Error.
func (g *Gate) Generate(ctx context.Context, userID, clientIP string, req imagegen.Request) (*Result, error) {
	details := audit.Details{
		Model:         req.Model,
		AspectRatio:   string(req.AspectRatio),
		PromptLength:  utf8.RuneCountInString(req.Prompt),
		PromptPreview: audit.PromptPreview(req.Prompt),
	}

	res, gerr := g.run(ctx, userID, clientIP, req, &details)

	outcome := OutcomeSuccess
	severity := audit.SeverityInfo
	message := "image generated"
	if gerr != nil {
		outcome = gerr.Outcome
		message = gerr.Message
		severity = audit.SeverityWarn
		if outcome == OutcomeGenerationFailed {
			severity = audit.SeverityError
		}
		if gerr.Err != nil {
			details.Error = gerr.Err.Error()
		}
	}

	metrics.ImageGenerationsTotal.WithLabelValues(string(outcome)).Inc()
	g.record(ctx, userID, clientIP, outcome, severity, message, details)

	if gerr != nil {
		return nil, gerr
	}
	return res, nil
}

func (g *Gate) run(ctx context.Context, userID, clientIP string, req imagegen.Request, details *audit.Details) (*Result, *Error) {
	if g.maintenance {
		return nil, &Error{
			Outcome: OutcomeConfigUnavailable,
			Message: "image generation is disabled for maintenance",
		}
	}
	if g.generator == nil || !g.generator.Configured() {
		return nil, &Error{
			Outcome: OutcomeConfigUnavailable,
			Message: "image generation is not configured",
			Err:     imagegen.ErrNotConfigured,
		}
	}

	daily := g.quota.CheckDailyQuota(ctx, userID)
	details.DailyUsed = daily.Used
	details.DailyLimit = daily.Limit
	details.Fallback = daily.IsFallback
	if !daily.Allowed {
		return nil, &Error{
			Outcome: OutcomeQuotaExceeded,
			Message: fmt.Sprintf("daily image limit reached (%d/%d)", daily.Used, daily.Limit),
			ResetAt: daily.ResetAt,
			Daily:   &daily,
		}
	}

	rate := g.limiter.CheckRateLimit(ctx, userID, clientIP)
	details.RateRemaining = rate.Remaining
	details.RateLimit = rate.Limit
	details.Fallback = details.Fallback || rate.IsFallback
	if !rate.Allowed {
		return nil, &Error{
			Outcome: OutcomeRateLimited,
			Message: fmt.Sprintf("too many image requests, limit is %d per minute", rate.Limit),
			ResetAt: rate.ResetAt,
			Daily:   &daily,
			Rate:    &rate,
		}
	}

	start := g.now()
	img, err := g.generator.Generate(ctx, req)
	elapsed := g.now().Sub(start)
	details.DurationMS = elapsed.Milliseconds()
	if err == nil && img == nil {
		err = errNoImage
	}

	modelLabel := req.Model
	if img != nil {
		modelLabel = img.Model
	}
	if modelLabel == "" {
		modelLabel = "default"
	}

	if err != nil {
		metrics.ImageGenerationDuration.WithLabelValues(modelLabel, "error").Observe(elapsed.Seconds())
		return nil, &Error{
			Outcome: OutcomeGenerationFailed,
			Message: "image generation failed: " + providerMessage(err),
			Daily:   &daily,
			Rate:    &rate,
			Err:     err,
		}
	}
	metrics.ImageGenerationDuration.WithLabelValues(modelLabel, "success").Observe(elapsed.Seconds())

	g.quota.IncrementDailyUsage(ctx, userID)
	if !daily.IsFallback {
		daily.Used++
		daily.Remaining = max(0, daily.Limit-daily.Used)
		daily.Allowed = daily.Used < daily.Limit
	}

	details.Model = img.Model
	details.DailyUsed = daily.Used
	details.ByteSize = img.ByteSize
	details.Width = img.Width
	details.Height = img.Height

	return &Result{Image: img, Daily: daily, RateLimit: rate}, nil
}

var errNoImage = errors.New("no image returned")

func providerMessage(err error) string {
	var perr *imagegen.ProviderError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}

func (g *Gate) record(ctx context.Context, userID, clientIP string, outcome Outcome, severity, message string, details audit.Details) {
	if g.recorder == nil {
		return
	}
	ipHash := ""
	if g.hasher != nil {
		ipHash = g.hasher.Hash(clientIP)
	}
	g.recorder.Record(ctx, audit.Entry{
		ID:        uuid.New(),
		UserID:    userID,
		Outcome:   string(outcome),
		Severity:  severity,
		Message:   message,
		IPHash:    ipHash,
		Details:   details,
		CreatedAt: g.now().UTC(),
	})
}

// Status returns the current quota and rate-limit position without consuming
// either.
func (g *Gate) Status(ctx context.Context, userID, clientIP string) Status {
	st := Status{
		MaintenanceMode: g.maintenance,
		Configured:      g.generator != nil && g.generator.Configured(),
	}

	var eg errgroup.Group
	eg.Go(func() error {
		st.Daily = g.quota.CheckDailyQuota(ctx, userID)
		return nil
	})
	eg.Go(func() error {
		st.RateLimit = g.limiter.GetRateLimitStatus(ctx, userID, clientIP)
		return nil
	})
	_ = eg.Wait()

	return st
}
