package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE GATE
// Маршруты, которым нужна анкета, не доходят до обработчика, пока анкеты нет.
// Новичку вежливо предлагается её создать.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileGateConfig holds configuration for the profile gate.
type ProfileGateConfig struct {
	// Protected are routes that require a profile.
	Protected map[string]bool

	// CacheTTL is how long a known profile is trusted without a store lookup.
	CacheTTL time.Duration

	// OnMissing is called when a user without a profile hits a protected route.
	OnMissing func(ctx context.Context, req Request)
}

// ProfileGate checks that the sender has a profile.
type ProfileGate struct {
	repo   profile.Repository
	config ProfileGateConfig
	now    func() time.Time

	mu    sync.Mutex
	known map[int64]time.Time // id -> expires at
}

// NewProfileGate creates a new gate.
func NewProfileGate(repo profile.Repository, config ProfileGateConfig) *ProfileGate {
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Minute
	}
	return &ProfileGate{
		repo:   repo,
		config: config,
		now:    time.Now,
		known:  make(map[int64]time.Time),
	}
}

// HasProfile reports whether the user has a profile.
func (g *ProfileGate) HasProfile(ctx context.Context, telegramID int64) (bool, error) {
	now := g.now()

	g.mu.Lock()
	exp, ok := g.known[telegramID]
	g.mu.Unlock()
	if ok && now.Before(exp) {
		return true, nil
	}

	_, err := g.repo.Get(ctx, profile.ID(telegramID))
	if err != nil {
		if shared.IsNotFound(err) {
			g.Forget(telegramID)
			return false, nil
		}
		return false, fmt.Errorf("profile gate: %w", err)
	}

	g.mu.Lock()
	g.known[telegramID] = now.Add(g.config.CacheTTL)
	g.mu.Unlock()
	return true, nil
}

// Forget drops the cached answer, e.g. after the profile is deleted.
func (g *ProfileGate) Forget(telegramID int64) {
	g.mu.Lock()
	delete(g.known, telegramID)
	g.mu.Unlock()
}

// Middleware returns the gate middleware.
func (g *ProfileGate) Middleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) error {
			if !g.config.Protected[req.Route] {
				return next(ctx, req)
			}

			ok, err := g.HasProfile(ctx, req.UserID)
			if err != nil {
				return err
			}
			if !ok {
				if g.config.OnMissing != nil {
					g.config.OnMissing(ctx, req)
				}
				return nil
			}
			return next(ctx, req)
		}
	}
}
