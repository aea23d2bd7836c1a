package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/waykegoat/MATCH/internal/infrastructure/metrics"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS MIDDLEWARE
// Records per-route latency and outcome, warns about slow handlers.
// ══════════════════════════════════════════════════════════════════════════════

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	Logger *slog.Logger

	// SlowRequestThreshold defines what's considered a slow request.
	SlowRequestThreshold time.Duration
}

// DefaultMetricsConfig returns sensible defaults for metrics middleware.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{SlowRequestThreshold: 2 * time.Second}
}

// Metrics returns the metrics middleware.
func Metrics(config MetricsConfig) Middleware {
	log := logger.OrDefault(config.Logger).With(logger.Component("telegram_metrics"))

	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) error {
			start := time.Now()
			err := next(ContextWithRequest(ctx, req), req)
			d := time.Since(start)

			status := "ok"
			switch {
			case errors.Is(err, ErrHandlerPanic):
				status = "panic"
			case err != nil:
				status = "error"
			}
			metrics.RecordUpdate(req.Route, status, d)

			if config.SlowRequestThreshold > 0 && d > config.SlowRequestThreshold {
				log.Warn("slow telegram handler",
					"route", req.Route,
					"telegram_id", req.UserID,
					logger.Latency(d),
				)
			}
			return err
		}
	}
}
