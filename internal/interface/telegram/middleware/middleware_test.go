package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/infrastructure/persistence/memory"
	"github.com/waykegoat/MATCH/pkg/logger"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, req Request) error {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	h := Chain(func(context.Context, Request) error {
		order = append(order, "handler")
		return nil
	}, mw("a"), mw("b"))

	require.NoError(t, h(context.Background(), Request{}))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

// ─────────────────────────────────────────────────────────────────────────────
// Rate limiting
// ─────────────────────────────────────────────────────────────────────────────

func TestRateLimiter_BurstThenLimited(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{Rate: 1, Burst: 2, BanThreshold: 100, BanDuration: time.Minute})
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Check(1).Allowed)
	assert.True(t, rl.Check(1).Allowed)

	res := rl.Check(1)
	assert.False(t, res.Allowed)
	assert.InDelta(t, time.Second, res.RetryAfter, float64(50*time.Millisecond))

	// Другой пользователь не страдает.
	assert.True(t, rl.Check(2).Allowed)

	now = now.Add(time.Second)
	assert.True(t, rl.Check(1).Allowed)
}

func TestRateLimiter_BanAfterRepeatedViolations(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{Rate: 0.01, Burst: 1, BanThreshold: 2, BanDuration: time.Minute})
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Check(1).Allowed)
	assert.False(t, rl.Check(1).Banned)
	assert.True(t, rl.Check(1).Banned)

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Check(1).Banned)
}

func TestRateLimiter_WhitelistAndCleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{Rate: 0.01, Burst: 1, IdleTTL: time.Minute, Whitelist: []int64{9}})
	rl.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Check(9).Allowed)
	}

	rl.Check(1)
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, rl.Cleanup())
}

func TestRateLimiter_MiddlewareNotifiesOnce(t *testing.T) {
	var notified int
	rl := NewRateLimiter(RateLimitConfig{
		Rate: 0.01, Burst: 1, BanThreshold: 100, BanDuration: time.Minute,
		OnLimited: func(context.Context, Request, time.Duration) { notified++ },
	})

	var handled int
	h := rl.Middleware()(func(context.Context, Request) error { handled++; return nil })

	for i := 0; i < 3; i++ {
		require.NoError(t, h(context.Background(), Request{UserID: 1}))
	}
	assert.Equal(t, 1, handled)
	assert.Equal(t, 2, notified)
}

// ─────────────────────────────────────────────────────────────────────────────
// Recovery and metrics
// ─────────────────────────────────────────────────────────────────────────────

func TestRecovery_ConvertsPanic(t *testing.T) {
	var apologised bool
	h := Chain(
		func(context.Context, Request) error { panic("boom") },
		Metrics(MetricsConfig{Logger: logger.Discard()}),
		Recovery(RecoveryConfig{
			Logger:  logger.Discard(),
			OnPanic: func(context.Context, Request) { apologised = true },
		}),
	)

	err := h(context.Background(), Request{UserID: 1, Route: "cmd:start"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.True(t, apologised)
}

func TestMetrics_PassesRequestInContext(t *testing.T) {
	h := Metrics(DefaultMetricsConfig())(func(ctx context.Context, req Request) error {
		assert.Equal(t, int64(5), TelegramIDFromContext(ctx))
		assert.Equal(t, "cb:like_", RouteFromContext(ctx))
		return errors.New("fail")
	})
	assert.Error(t, h(context.Background(), Request{UserID: 5, Route: "cb:like_"}))
}

// ─────────────────────────────────────────────────────────────────────────────
// Profile gate
// ─────────────────────────────────────────────────────────────────────────────

func TestProfileGate(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProfileRepository()
	p, err := profile.New(1, profile.Details{
		Name: "Nova", Region: profile.RegionEU, Platform: profile.PlatformPC, Interests: []string{"PVP"},
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, p))

	var missing []int64
	gate := NewProfileGate(repo, ProfileGateConfig{
		Protected: map[string]bool{"cmd:search": true},
		OnMissing: func(_ context.Context, req Request) { missing = append(missing, req.UserID) },
	})

	var handled []int64
	h := gate.Middleware()(func(_ context.Context, req Request) error {
		handled = append(handled, req.UserID)
		return nil
	})

	require.NoError(t, h(ctx, Request{UserID: 1, Route: "cmd:search"}))
	require.NoError(t, h(ctx, Request{UserID: 2, Route: "cmd:search"}))
	require.NoError(t, h(ctx, Request{UserID: 2, Route: "cmd:start"}))

	assert.Equal(t, []int64{1, 2}, handled)
	assert.Equal(t, []int64{2}, missing)

	// Кэш держит ответ, пока его не сбросят.
	require.NoError(t, repo.Delete(ctx, 1))
	ok, err := gate.HasProfile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	gate.Forget(1)
	ok, err = gate.HasProfile(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
