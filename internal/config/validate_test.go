package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, WriteTimeout: 90 * time.Second},
		Redis:  RedisConfig{Host: "localhost", Port: 6379, DialTimeout: 500 * time.Millisecond},
		Guardrail: GuardrailConfig{
			DailyLimit:         20,
			RateLimitPerMinute: 5,
			Namespace:          "mealwise",
			Backend:            BackendRedis,
		},
		ImageGen: ImageGenConfig{APIKey: "key", DefaultModel: "imagen-4.0-generate-001", Timeout: time.Minute},
		JWT:      JWTConfig{AccessSecret: "access-secret-that-is-at-least-32-chars!"},
		DB:       DBConfig{Port: 5432},
		Audit:    AuditConfig{IPHashKey: "pepper"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_JWTAccessSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected JWT_ACCESS_SECRET error, got: %v", err)
	}
}

func TestValidate_GuardrailLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Guardrail.DailyLimit = 0
	cfg.Guardrail.RateLimitPerMinute = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected guardrail validation errors")
	}
	if !strings.Contains(err.Error(), "GUARDRAIL_DAILY_LIMIT") {
		t.Errorf("expected GUARDRAIL_DAILY_LIMIT error in: %v", err)
	}
	if !strings.Contains(err.Error(), "GUARDRAIL_RATE_LIMIT_PER_MINUTE") {
		t.Errorf("expected GUARDRAIL_RATE_LIMIT_PER_MINUTE error in: %v", err)
	}
}

func TestValidate_NamespaceWithColon(t *testing.T) {
	cfg := validConfig()
	cfg.Guardrail.Namespace = "a:b"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "GUARDRAIL_NAMESPACE") {
		t.Fatalf("expected GUARDRAIL_NAMESPACE error, got: %v", err)
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Guardrail.Backend = "memcached"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "GUARDRAIL_BACKEND") {
		t.Fatalf("expected GUARDRAIL_BACKEND error, got: %v", err)
	}
}

func TestValidate_MissingImageKeyIsNotFatal(t *testing.T) {
	cfg := validConfig()
	cfg.ImageGen.APIKey = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error without provider key, got: %v", err)
	}
}

func TestValidate_DBPasswordRequiredOnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error with DB disabled, got: %v", err)
	}

	cfg.DB.Enabled = true
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected DB_PASSWORD error, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
		Redis:  RedisConfig{Port: 6379},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}
	errStr := err.Error()
	for _, substr := range []string{"JWT_ACCESS_SECRET", "GUARDRAIL_DAILY_LIMIT", "GUARDRAIL_NAMESPACE", "SERVER_PORT", "IMAGEGEN_TIMEOUT"} {
		if !strings.Contains(errStr, substr) {
			t.Errorf("expected %q in error: %s", substr, errStr)
		}
	}
}

func TestValidate_WriteTimeoutBelowGenerationTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Server.WriteTimeout = 30 * time.Second
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SERVER_WRITE_TIMEOUT") {
		t.Fatalf("expected SERVER_WRITE_TIMEOUT error, got: %v", err)
	}
}
