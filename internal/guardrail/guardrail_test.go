package guardrail

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mealwise/mealwise/internal/config"
	iredis "github.com/mealwise/mealwise/internal/redis"
)

var testNow = time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

func setupMiniredis(t *testing.T) (*iredis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return iredis.NewStore(client), mr
}

func testConfig(daily, perMinute int) config.GuardrailConfig {
	return config.GuardrailConfig{
		DailyLimit:         daily,
		RateLimitPerMinute: perMinute,
		Namespace:          "test",
		Backend:            config.BackendRedis,
	}
}
