package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// Сводка для оператора: анкеты, новые за сутки, фото, лайки, мэтчи.
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache caches the operator snapshot. Implemented by the Redis layer.
type StatsCache interface {
	Get(ctx context.Context) (*profile.Stats, error)
	Set(ctx context.Context, st *profile.Stats) error
}

// GetStatsQuery asks for the operator snapshot.
type GetStatsQuery struct {
	// Fresh - игнорировать кэш.
	Fresh bool
}

// StatsDTO is the operator snapshot.
type StatsDTO struct {
	Total           int       `json:"total"`
	Visible         int       `json:"visible"`
	Hidden          int       `json:"hidden"`
	CreatedToday    int       `json:"created_today"`
	CreatedLast24h  int       `json:"created_last_24h"`
	WithAttachments int       `json:"with_attachments"`
	TotalLikes      int       `json:"total_likes"`
	TotalMatches    int       `json:"total_matches"`
	FromCache       bool      `json:"from_cache"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// GetStatsHandler handles GetStatsQuery.
type GetStatsHandler struct {
	repo   profile.Repository
	cache  StatsCache // optional
	logger *slog.Logger
	now    func() time.Time
}

// NewGetStatsHandler creates a new GetStatsHandler.
func NewGetStatsHandler(repo profile.Repository, cache StatsCache, log *slog.Logger) *GetStatsHandler {
	return &GetStatsHandler{
		repo:   repo,
		cache:  cache,
		logger: logger.OrDefault(log).With("handler", "get_stats"),
		now:    time.Now,
	}
}

// Handle executes the query. Cache failures fall back to the store.
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*StatsDTO, error) {
	now := h.now()

	if h.cache != nil && !q.Fresh {
		if st, err := h.cache.Get(ctx); err == nil && st != nil {
			return toStatsDTO(st, true, now), nil
		}
	}

	st, err := h.repo.Stats(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("get_stats: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, st); err != nil {
			h.logger.Warn("failed to cache stats", logger.Err(err))
		}
	}
	return toStatsDTO(st, false, now), nil
}

func toStatsDTO(st *profile.Stats, cached bool, now time.Time) *StatsDTO {
	return &StatsDTO{
		Total:           st.Total,
		Visible:         st.Visible,
		Hidden:          st.Total - st.Visible,
		CreatedToday:    st.CreatedToday,
		CreatedLast24h:  st.CreatedLast24h,
		WithAttachments: st.WithAttachments,
		TotalLikes:      st.TotalLikes,
		TotalMatches:    st.TotalMatches,
		FromCache:       cached,
		GeneratedAt:     now,
	}
}
