package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secret
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}

	// Guardrail limits
	if c.Guardrail.DailyLimit < 1 {
		errs = append(errs, fmt.Sprintf("GUARDRAIL_DAILY_LIMIT must be positive, got %d", c.Guardrail.DailyLimit))
	}
	if c.Guardrail.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("GUARDRAIL_RATE_LIMIT_PER_MINUTE must be positive, got %d", c.Guardrail.RateLimitPerMinute))
	}
	if strings.ContainsAny(c.Guardrail.Namespace, " :") || c.Guardrail.Namespace == "" {
		errs = append(errs, "GUARDRAIL_NAMESPACE must be non-empty and contain no spaces or colons")
	}
	if c.Guardrail.Backend != BackendRedis && c.Guardrail.Backend != BackendMemory {
		errs = append(errs, fmt.Sprintf("GUARDRAIL_BACKEND must be %q or %q, got %q", BackendRedis, BackendMemory, c.Guardrail.Backend))
	}

	// DB password only matters when persistence is on
	if c.DB.Enabled && c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required when DB_ENABLED is set")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}
	if c.DB.Enabled && (c.DB.Port < 1 || c.DB.Port > 65535) {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}

	if c.ImageGen.Timeout <= 0 {
		errs = append(errs, "IMAGEGEN_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout <= c.ImageGen.Timeout {
		errs = append(errs, fmt.Sprintf("SERVER_WRITE_TIMEOUT (%s) must exceed IMAGEGEN_TIMEOUT (%s)", c.Server.WriteTimeout, c.ImageGen.Timeout))
	}

	// Missing provider key is not fatal: the gate reports CONFIG_UNAVAILABLE.
	if !c.ImageGen.Configured() {
		slog.Warn("IMAGEGEN_API_KEY is empty; image generation will report not configured")
	}
	if c.Audit.IPHashKey == "" {
		slog.Warn("AUDIT_IP_HASH_KEY is empty; client IP hashes are unkeyed")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
