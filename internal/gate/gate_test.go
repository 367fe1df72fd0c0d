package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealwise/mealwise/internal/audit"
	"github.com/mealwise/mealwise/internal/config"
	"github.com/mealwise/mealwise/internal/guardrail"
	"github.com/mealwise/mealwise/internal/imagegen"
	"github.com/mealwise/mealwise/internal/kv"
	iredis "github.com/mealwise/mealwise/internal/redis"
)

type fakeGenerator struct {
	configured bool
	err        error
	noImage    bool
	calls      int
}

func (f *fakeGenerator) Configured() bool { return f.configured }

func (f *fakeGenerator) Generate(_ context.Context, req imagegen.Request) (*imagegen.Image, error) {
	f.calls++
	if f.err != nil || f.noImage {
		return nil, f.err
	}
	model := req.Model
	if model == "" {
		model = "imagen-test"
	}
	return &imagegen.Image{Data: []byte("png-bytes"), MIMEType: "image/png", Model: model, ByteSize: 9, Width: 64, Height: 64}, nil
}

type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memRecorder) Record(_ context.Context, e audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

type fixture struct {
	gate     *Gate
	quota    *guardrail.QuotaChecker
	gen      *fakeGenerator
	recorder *memRecorder
	mr       *miniredis.Miniredis
}

func testGuardrailConfig(daily, perMinute int, maintenance bool) config.GuardrailConfig {
	return config.GuardrailConfig{
		DailyLimit:         daily,
		RateLimitPerMinute: perMinute,
		MaintenanceMode:    maintenance,
		Namespace:          "test",
		Backend:            config.BackendRedis,
	}
}

func newFixture(t *testing.T, cfg config.GuardrailConfig) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	accessor := kv.Static(iredis.NewStore(client))
	quota := guardrail.NewQuotaChecker(accessor, cfg)
	limiter := guardrail.NewRateLimiter(accessor, cfg)
	gen := &fakeGenerator{configured: true}
	rec := &memRecorder{}

	return &fixture{
		gate:     New(cfg, quota, limiter, gen, rec, audit.NewIPHasher("test-key")),
		quota:    quota,
		gen:      gen,
		recorder: rec,
		mr:       mr,
	}
}

func validRequest() imagegen.Request {
	return imagegen.Request{Prompt: "a bowl of ramen on a wooden table", AspectRatio: imagegen.AspectSquare}
}

func requireOutcome(t *testing.T, err error, want Outcome) *Error {
	t.Helper()
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, want, gerr.Outcome)
	return gerr
}

func TestGenerate_MaintenanceMode(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 5, true))

	res, err := f.gate.Generate(context.Background(), "admin-1", "10.0.0.1", validRequest())

	assert.Nil(t, res)
	gerr := requireOutcome(t, err, OutcomeConfigUnavailable)
	assert.Contains(t, gerr.Message, "maintenance")
	assert.Zero(t, f.gen.calls, "generator must not be invoked")
	require.Len(t, f.recorder.entries, 1)
	assert.Equal(t, string(OutcomeConfigUnavailable), f.recorder.entries[0].Outcome)
}

func TestGenerate_NotConfigured(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 5, false))
	f.gen.configured = false

	_, err := f.gate.Generate(context.Background(), "admin-1", "10.0.0.1", validRequest())

	gerr := requireOutcome(t, err, OutcomeConfigUnavailable)
	assert.ErrorIs(t, gerr, imagegen.ErrNotConfigured)
	assert.Zero(t, f.gen.calls)
	assert.Len(t, f.recorder.entries, 1)
}

func TestGenerate_FailureDoesNotIncrement(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 5, false))
	f.gen.err = &imagegen.ProviderError{Provider: "gemini", Model: "imagen-test", Message: "upstream exploded"}
	ctx := context.Background()

	before := f.quota.CheckDailyQuota(ctx, "admin-1")
	_, err := f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())

	gerr := requireOutcome(t, err, OutcomeGenerationFailed)
	assert.Contains(t, gerr.Message, "upstream exploded")
	assert.Equal(t, 1, f.gen.calls)

	after := f.quota.CheckDailyQuota(ctx, "admin-1")
	assert.Equal(t, before.Used, after.Used)

	require.Len(t, f.recorder.entries, 1)
	entry := f.recorder.entries[0]
	assert.Equal(t, string(OutcomeGenerationFailed), entry.Outcome)
	assert.Equal(t, audit.SeverityError, entry.Severity)
	assert.NotEmpty(t, entry.Details.Error)
}

func TestGenerate_SuccessIncrementsByOne(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 5, false))
	ctx := context.Background()

	before := f.quota.CheckDailyQuota(ctx, "admin-1")
	res, err := f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
	require.NoError(t, err)

	assert.Equal(t, "imagen-test", res.Image.Model)
	assert.Equal(t, before.Used+1, res.Daily.Used)
	assert.Equal(t, 19, res.Daily.Remaining)

	after := f.quota.CheckDailyQuota(ctx, "admin-1")
	assert.Equal(t, before.Used+1, after.Used)

	require.Len(t, f.recorder.entries, 1)
	entry := f.recorder.entries[0]
	assert.Equal(t, string(OutcomeSuccess), entry.Outcome)
	assert.Equal(t, "admin-1", entry.UserID)
	assert.Equal(t, 64, entry.Details.Width)
	assert.Equal(t, audit.NewIPHasher("test-key").Hash("10.0.0.1"), entry.IPHash)
	assert.NotContains(t, entry.IPHash, "10.0.0.1")
}

func TestGenerate_QuotaExceeded(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(2, 10, false))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
		require.NoError(t, err)
	}

	_, err := f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
	gerr := requireOutcome(t, err, OutcomeQuotaExceeded)
	require.NotNil(t, gerr.Daily)
	assert.Equal(t, 2, gerr.Daily.Used)
	assert.Equal(t, 0, gerr.Daily.Remaining)
	assert.False(t, gerr.ResetAt.IsZero())
	assert.Equal(t, 2, f.gen.calls)
	assert.Len(t, f.recorder.entries, 3)
}

func TestGenerate_QuotaCheckedBeforeRateLimit(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(1, 1, false))
	ctx := context.Background()

	_, err := f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
	require.NoError(t, err)

	// Both limits are now spent; quota must be reported.
	_, err = f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
	requireOutcome(t, err, OutcomeQuotaExceeded)
}

func TestGenerate_RateLimited(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 2, false))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
		require.NoError(t, err)
	}

	_, err := f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
	gerr := requireOutcome(t, err, OutcomeRateLimited)
	require.NotNil(t, gerr.Rate)
	assert.Equal(t, 0, gerr.Rate.Remaining)
	assert.WithinDuration(t, time.Now().Add(guardrail.RateWindow), gerr.ResetAt, 2*time.Second)
	assert.Equal(t, 2, f.gen.calls)

	// A different client IP has its own window.
	_, err = f.gate.Generate(ctx, "admin-1", "10.0.0.2", validRequest())
	assert.NoError(t, err)
}

func TestGenerate_BackendDownFallsBack(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(1, 1, false))
	f.mr.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
		require.NoError(t, err)
		assert.True(t, res.Daily.IsFallback)
		assert.True(t, res.RateLimit.IsFallback)
	}
	assert.Equal(t, 3, f.gen.calls)
	for _, e := range f.recorder.entries {
		assert.True(t, e.Details.Fallback)
	}
}

func TestGenerate_AuditOmitsFullPrompt(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 5, false))
	req := validRequest()
	req.Prompt = "a very long prompt describing a plate of pasta with basil and tomatoes, garnished with parmesan"

	_, err := f.gate.Generate(context.Background(), "admin-1", "10.0.0.1", req)
	require.NoError(t, err)

	d := f.recorder.entries[0].Details
	assert.Equal(t, len([]rune(req.Prompt)), d.PromptLength)
	assert.NotEqual(t, req.Prompt, d.PromptPreview)
}

func TestGenerate_PlainGeneratorError(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 5, false))
	f.gen.err = errors.New("dial tcp: timeout")

	_, err := f.gate.Generate(context.Background(), "admin-1", "10.0.0.1", validRequest())
	gerr := requireOutcome(t, err, OutcomeGenerationFailed)
	assert.Contains(t, gerr.Message, "dial tcp: timeout")
}

func TestStatus_DoesNotConsume(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 2, false))
	ctx := context.Background()

	_, err := f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		st := f.gate.Status(ctx, "admin-1", "10.0.0.1")
		assert.Equal(t, 1, st.Daily.Used)
		assert.Equal(t, 19, st.Daily.Remaining)
		assert.Equal(t, 1, st.RateLimit.Remaining)
		assert.Equal(t, 60, st.RateLimit.WindowSeconds)
		assert.False(t, st.MaintenanceMode)
		assert.True(t, st.Configured)
	}
	assert.Len(t, f.recorder.entries, 1, "status must not audit")
}

func TestStatus_Maintenance(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 5, true))
	st := f.gate.Status(context.Background(), "admin-1", "10.0.0.1")
	assert.True(t, st.MaintenanceMode)
	assert.Equal(t, 20, st.Daily.Remaining)
}

func TestGenerate_NilImageIsGenerationFailure(t *testing.T) {
	f := newFixture(t, testGuardrailConfig(20, 5, false))
	f.gen.noImage = true
	ctx := context.Background()

	var res *Result
	var err error
	require.NotPanics(t, func() {
		res, err = f.gate.Generate(ctx, "admin-1", "10.0.0.1", validRequest())
	})

	assert.Nil(t, res)
	gerr := requireOutcome(t, err, OutcomeGenerationFailed)
	assert.Contains(t, gerr.Message, "no image returned")
	assert.Equal(t, 0, f.quota.CheckDailyQuota(ctx, "admin-1").Used)
	assert.Len(t, f.recorder.entries, 1)
}
