package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/waykegoat/MATCH/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Per-user token bucket. Repeated violations earn a short ban.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// Rate is the sustained number of updates per second per user.
	Rate float64

	// Burst is the bucket size.
	Burst int

	// IdleTTL drops limiters of users who have been quiet this long.
	IdleTTL time.Duration

	// BanDuration is how long to ignore users who exceed limits repeatedly.
	BanDuration time.Duration

	// BanThreshold is the number of violations within BanDuration before a ban.
	BanThreshold int

	// Whitelist are users exempt from rate limiting (admins).
	Whitelist []int64

	// OnLimited is called once per violation so the user learns why nothing happens.
	// Banned users are ignored silently.
	OnLimited func(ctx context.Context, req Request, retryAfter time.Duration)
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:         2,
		Burst:        5,
		IdleTTL:      10 * time.Minute,
		BanDuration:  time.Minute,
		BanThreshold: 10,
	}
}

// RateLimiter implements per-user rate limiting.
type RateLimiter struct {
	config    RateLimitConfig
	whitelist map[int64]struct{}
	now       func() time.Time

	mu    sync.Mutex
	users map[int64]*userLimit
}

type userLimit struct {
	limiter     *rate.Limiter
	lastSeen    time.Time
	violations  int
	windowStart time.Time
	bannedUntil time.Time
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if config.Rate <= 0 {
		config.Rate = def.Rate
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	if config.BanThreshold <= 0 {
		config.BanThreshold = def.BanThreshold
	}

	wl := make(map[int64]struct{}, len(config.Whitelist))
	for _, id := range config.Whitelist {
		wl[id] = struct{}{}
	}

	return &RateLimiter{
		config:    config,
		whitelist: wl,
		now:       time.Now,
		users:     make(map[int64]*userLimit),
	}
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Banned     bool
	RetryAfter time.Duration
}

// Check checks if a request from the given user is allowed.
func (rl *RateLimiter) Check(telegramID int64) RateLimitResult {
	if _, ok := rl.whitelist[telegramID]; ok {
		return RateLimitResult{Allowed: true}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.users[telegramID]
	if !ok {
		u = &userLimit{
			limiter:     rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst),
			windowStart: now,
		}
		rl.users[telegramID] = u
	}
	u.lastSeen = now

	if now.Before(u.bannedUntil) {
		return RateLimitResult{Banned: true, RetryAfter: u.bannedUntil.Sub(now)}
	}

	res := u.limiter.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	if delay == 0 {
		return RateLimitResult{Allowed: true}
	}
	res.CancelAt(now)

	if rl.config.BanDuration > 0 && now.Sub(u.windowStart) > rl.config.BanDuration {
		u.windowStart = now
		u.violations = 0
	}
	u.violations++
	if rl.config.BanDuration > 0 && u.violations >= rl.config.BanThreshold {
		u.bannedUntil = now.Add(rl.config.BanDuration)
		u.violations = 0
		return RateLimitResult{Banned: true, RetryAfter: rl.config.BanDuration}
	}

	return RateLimitResult{RetryAfter: delay}
}

// Reset resets the rate limit state for a user.
func (rl *RateLimiter) Reset(telegramID int64) {
	rl.mu.Lock()
	delete(rl.users, telegramID)
	rl.mu.Unlock()
}

// Cleanup drops limiters idle for longer than IdleTTL. Returns how many were dropped.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	dropped := 0
	for id, u := range rl.users {
		if now.Sub(u.lastSeen) > rl.config.IdleTTL && !now.Before(u.bannedUntil) {
			delete(rl.users, id)
			dropped++
		}
	}
	return dropped
}

// RunCleanup calls Cleanup every interval until ctx is cancelled.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) error {
			res := rl.Check(req.UserID)
			if res.Allowed {
				return next(ctx, req)
			}

			metrics.RecordRateLimited()
			if !res.Banned && rl.config.OnLimited != nil {
				rl.config.OnLimited(ctx, req, res.RetryAfter)
			}
			return nil
		}
	}
}
