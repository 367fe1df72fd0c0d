package guardrail

import "time"

// RateWindow is the fixed rate-limit window. The counter key expires after
// one window, which resets the count.
const RateWindow = 60 * time.Second

// QuotaResult describes a user's daily allowance.
type QuotaResult struct {
	Allowed    bool      `json:"allowed"`
	Remaining  int       `json:"remaining"`
	Used       int       `json:"used"`
	Limit      int       `json:"limit"`
	ResetAt    time.Time `json:"reset_at"`
	IsFallback bool      `json:"is_fallback"`
}

// RateLimitResult describes a user+client's position in the current window.
type RateLimitResult struct {
	Allowed       bool      `json:"allowed"`
	Remaining     int       `json:"remaining"`
	Limit         int       `json:"limit"`
	ResetAt       time.Time `json:"reset_at"`
	WindowSeconds int       `json:"window_seconds"`
	IsFallback    bool      `json:"is_fallback"`
}
