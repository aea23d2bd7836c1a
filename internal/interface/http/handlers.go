package http

import (
	"net/http"
	"strconv"

	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/interface/http/handlers"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROBES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"service": "gamermatch",
		"version": s.deps.Version,
	})
}

// handleHealth reports every check. Degraded still answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	handlers.WriteJSON(w, code, status)
}

// handleReady answers with the status only, for load balancers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Healthy {
		handlers.WriteError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]bool{"alive": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN API
// ══════════════════════════════════════════════════════════════════════════════

// handleStats: GET /api/v1/stats[?fresh=true]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		handlers.WriteError(w, http.StatusNotImplemented, "not_configured", "Stats are not available")
		return
	}

	fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))
	dto, err := s.deps.Stats.Handle(r.Context(), query.GetStatsQuery{Fresh: fresh})
	if err != nil {
		s.logger.Error("stats query failed", logger.Err(err),
			"request_id", handlers.RequestIDFromContext(r.Context()))
		handlers.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to load stats")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, dto)
}

// handleBotStats: GET /api/v1/bot
func (s *Server) handleBotStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.BotStats == nil {
		handlers.WriteError(w, http.StatusNotImplemented, "not_configured", "Bot stats are not available")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, s.deps.BotStats())
}
