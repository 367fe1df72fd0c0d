package gate

import (
	"time"

	"github.com/mealwise/mealwise/internal/guardrail"
)

// Outcome is the terminal classification of a generation attempt.
type Outcome string

const (
	OutcomeConfigUnavailable Outcome = "CONFIG_UNAVAILABLE"
	OutcomeQuotaExceeded     Outcome = "QUOTA_EXCEEDED"
	OutcomeRateLimited       Outcome = "RATE_LIMITED"
	OutcomeGenerationFailed  Outcome = "GENERATION_FAILED"
	OutcomeSuccess           Outcome = "SUCCESS"
)

// Error is returned for every non-success outcome. ResetAt is set for
// QUOTA_EXCEEDED and RATE_LIMITED.
type Error struct {
	Outcome Outcome
	Message string
	ResetAt time.Time
	Daily   *guardrail.QuotaResult
	Rate    *guardrail.RateLimitResult
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
