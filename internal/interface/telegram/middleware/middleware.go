// Package middleware contains Telegram bot middlewares for request processing.
// These middlewares form a chain that processes every incoming update before
// it reaches the handler.
package middleware

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// Request is the routed update as seen by middlewares.
type Request struct {
	// UserID is the Telegram ID of the sender.
	UserID int64

	// ChatID is where replies go.
	ChatID int64

	// Route is the resolved handler name, e.g. "cmd:start" or "cb:like_".
	Route string

	// CallbackID is set for callback queries.
	CallbackID string
}

// Handler processes one routed update.
type Handler func(ctx context.Context, req Request) error

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// Chain applies middlewares so that the first one runs outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// ══════════════════════════════════════════════════════════════════════════════

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// TelegramIDContextKey is the context key for the Telegram user ID.
	TelegramIDContextKey contextKey = "telegram_id"

	// RouteContextKey is the context key for the resolved route.
	RouteContextKey contextKey = "route"
)

// ContextWithRequest stores the sender and route in ctx.
func ContextWithRequest(ctx context.Context, req Request) context.Context {
	ctx = context.WithValue(ctx, TelegramIDContextKey, req.UserID)
	return context.WithValue(ctx, RouteContextKey, req.Route)
}

// TelegramIDFromContext retrieves the Telegram ID from context.
// Returns 0 if not found.
func TelegramIDFromContext(ctx context.Context) int64 {
	id, ok := ctx.Value(TelegramIDContextKey).(int64)
	if !ok {
		return 0
	}
	return id
}

// RouteFromContext retrieves the route from context.
func RouteFromContext(ctx context.Context) string {
	r, _ := ctx.Value(RouteContextKey).(string)
	return r
}
