// Package http serves the operational endpoints of the bot: probes,
// Prometheus metrics and a small key-protected admin API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/interface/http/handlers"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// EnableMetrics exposes /metrics.
	EnableMetrics bool

	// RateLimitPerMinute limits /api/v1 per client IP (0 = disabled).
	RateLimitPerMinute int

	// APIKeys guard /api/v1. Empty disables the admin API.
	APIKeys []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
		EnableMetrics:      true,
		RateLimitPerMinute: 60,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// StatsQuerier is satisfied by *query.GetStatsHandler.
type StatsQuerier interface {
	Handle(ctx context.Context, q query.GetStatsQuery) (*query.StatsDTO, error)
}

// Dependencies contains everything the handlers read from.
type Dependencies struct {
	Health *handlers.HealthChecker

	// Stats backs GET /api/v1/stats. Optional.
	Stats StatsQuerier

	// BotStats returns runtime counters of the bot. Optional.
	BotStats func() any

	Logger  *slog.Logger
	Version string
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	limiter    *handlers.IPRateLimiter
	logger     *slog.Logger

	mu      sync.RWMutex
	running bool
}

// NewServer creates a new HTTP server.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Health == nil {
		deps.Health = handlers.NewHealthChecker(deps.Version)
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: logger.OrDefault(deps.Logger).With(logger.Component("http")),
	}
	if config.RateLimitPerMinute > 0 {
		s.limiter = handlers.NewIPRateLimiter(config.RateLimitPerMinute, config.RateLimitPerMinute/4+1)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr: config.Addr,
		Handler: handlers.Chain(s.router,
			handlers.RequestID,
			handlers.AccessLog(s.logger),
			handlers.Recover(s.logger),
			handlers.SecurityHeaders,
		),
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Probes
	// ─────────────────────────────────────────────────────────────────────────
	s.router.Handle("GET /health", handlers.NoCache(http.HandlerFunc(s.handleHealth)))
	s.router.Handle("GET /healthz", handlers.NoCache(http.HandlerFunc(s.handleHealth)))
	s.router.Handle("GET /ready", handlers.NoCache(http.HandlerFunc(s.handleReady)))
	s.router.Handle("GET /live", handlers.NoCache(http.HandlerFunc(s.handleLive)))
	s.router.HandleFunc("GET /{$}", s.handleRoot)

	if s.config.EnableMetrics {
		s.router.Handle("GET /metrics", promhttp.Handler())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Admin API
	// ─────────────────────────────────────────────────────────────────────────
	if len(s.config.APIKeys) == 0 {
		return
	}
	auth := handlers.NewAPIKeyAuth(s.config.APIKeys)
	mws := []handlers.MiddlewareFunc{handlers.NoCache}
	if s.limiter != nil {
		mws = append(mws, s.limiter.Middleware)
	}
	mws = append(mws, auth.Middleware)

	s.router.Handle("GET /api/v1/stats", handlers.Chain(http.HandlerFunc(s.handleStats), mws...))
	s.router.Handle("GET /api/v1/bot", handlers.Chain(http.HandlerFunc(s.handleBotStats), mws...))
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("http server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", s.config.Addr)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields at most one
// error and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// RunLimiterCleanup resets per-IP buckets every interval until ctx is done.
func (s *Server) RunLimiterCleanup(ctx context.Context, interval time.Duration) {
	if s.limiter == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Reset()
		}
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether Start has been called and not shut down.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
