package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Catches panics in handlers, logs the stack and apologises to the user.
// The worker that ran the handler keeps serving updates.
// ══════════════════════════════════════════════════════════════════════════════

// ErrHandlerPanic is returned when a handler panicked.
var ErrHandlerPanic = errors.New("handler panic")

// DefaultUserErrorMessage is sent after a panic or an unexpected error.
const DefaultUserErrorMessage = "😔 Что-то пошло не так. Попробуй ещё раз через минуту."

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	Logger *slog.Logger

	// EnableStackTrace adds the stack to the log record.
	EnableStackTrace bool

	// OnPanic is called after the panic is logged, e.g. to apologise to the user.
	OnPanic func(ctx context.Context, req Request)
}

// Recovery returns the panic recovery middleware.
func Recovery(config RecoveryConfig) Middleware {
	log := logger.OrDefault(config.Logger).With(logger.Component("recovery"))

	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				attrs := []any{
					"panic", fmt.Sprint(r),
					"route", req.Route,
					"telegram_id", req.UserID,
				}
				if config.EnableStackTrace {
					attrs = append(attrs, "stack", string(debug.Stack()))
				}
				log.Error("panic recovered in telegram handler", attrs...)

				if config.OnPanic != nil {
					config.OnPanic(ctx, req)
				}
				err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}()

			return next(ctx, req)
		}
	}
}
