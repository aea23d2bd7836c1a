// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/interest"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/infrastructure/metrics"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// NEXT CANDIDATE QUERY
// Подбирает следующую анкету для просмотра. Набор кандидатов выводится
// заново при каждом вызове из текущего состояния книг лайков, курсора нет.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultMinInterestMatches - ниже этого числа совпадений по интересам
	// набор дополняется случайными анкетами.
	DefaultMinInterestMatches = 5

	// DefaultTopUpTarget - до какого размера дополняется набор.
	DefaultTopUpTarget = 10
)

// Selection modes.
const (
	ModeInterest = "interest"
	ModeTopUp    = "topup"
	ModeRandom   = "random"
)

// NextCandidateQuery asks for the next profile to show.
type NextCandidateQuery struct {
	ViewerID int64
}

// Validate validates the query.
func (q NextCandidateQuery) Validate() error {
	if !profile.ID(q.ViewerID).IsValid() {
		return profile.ErrInvalidProfileID
	}
	return nil
}

// NextCandidateResult is the selected candidate.
type NextCandidateResult struct {
	Candidate *profile.Profile

	// SharedInterests - общие с просматривающим интересы.
	SharedInterests []string

	// LikedYou - кандидат уже лайкнул просматривающего; лайк в ответ даст мэтч.
	LikedYou bool

	// Mode - interest, topup или random.
	Mode string

	// PoolSize - сколько анкет прошло базовый фильтр.
	PoolSize int
}

// SelectorConfig holds thresholds of interest-based selection.
type SelectorConfig struct {
	MinInterestMatches int
	TopUpTarget        int

	// InterestSearchEnabled - глобальный выключатель поиска по интересам.
	// nil означает "включено".
	InterestSearchEnabled func() bool
}

// DefaultSelectorConfig returns the default thresholds.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		MinInterestMatches: DefaultMinInterestMatches,
		TopUpTarget:        DefaultTopUpTarget,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// NextCandidateHandler handles NextCandidateQuery.
// Safe for concurrent use; takes no locks that block likes.
type NextCandidateHandler struct {
	repo   profile.Repository
	cfg    SelectorConfig
	logger *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewNextCandidateHandler creates a new NextCandidateHandler.
func NewNextCandidateHandler(repo profile.Repository, cfg SelectorConfig, log *slog.Logger) *NextCandidateHandler {
	if cfg.MinInterestMatches <= 0 {
		cfg.MinInterestMatches = DefaultMinInterestMatches
	}
	if cfg.TopUpTarget < cfg.MinInterestMatches {
		cfg.TopUpTarget = DefaultTopUpTarget
	}
	return &NextCandidateHandler{
		repo:   repo,
		cfg:    cfg,
		logger: logger.OrDefault(log).With("handler", "next_candidate"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRandSource replaces the random source. Used by tests for determinism.
func (h *NextCandidateHandler) WithRandSource(src rand.Source) *NextCandidateHandler {
	h.mu.Lock()
	h.rnd = rand.New(src)
	h.mu.Unlock()
	return h
}

// Handle executes the query. Returns profile.ErrNoCandidates when nothing fits.
func (h *NextCandidateHandler) Handle(ctx context.Context, q NextCandidateQuery) (*NextCandidateResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("next_candidate: %w", err)
	}

	viewer, err := h.repo.Get(ctx, profile.ID(q.ViewerID))
	if err != nil {
		return nil, fmt.Errorf("next_candidate: failed to get viewer: %w", err)
	}

	// Лайки фильтруются в eligiblePool: исключать по viewer.liked в хранилище нельзя,
	// там могут быть ссылки на удалённую анкету с тем же ID.
	listed, err := h.repo.ListEligible(ctx, profile.EligibleFilter{Exclude: []profile.ID{viewer.ID}, VisibleOnly: true})
	if err != nil {
		return nil, fmt.Errorf("next_candidate: failed to list profiles: %w", err)
	}

	pool := eligiblePool(viewer, listed)
	if len(pool) == 0 {
		metrics.RecordCandidate(metrics.CandidateNone, 0)
		return nil, profile.ErrNoCandidates
	}

	candidates, mode := h.candidateSet(viewer, pool)
	if len(candidates) == 0 {
		metrics.RecordCandidate(metrics.CandidateNone, len(pool))
		return nil, profile.ErrNoCandidates
	}

	picked := candidates[h.intn(len(candidates))]
	metrics.RecordCandidate(modeMetric(mode), len(pool))

	h.logger.Debug("candidate selected",
		logger.ViewerID(q.ViewerID),
		logger.TargetID(picked.ID.Int64()),
		"mode", mode,
		"pool", len(pool),
		"candidates", len(candidates),
	)

	return &NextCandidateResult{
		Candidate:       picked,
		SharedInterests: interest.Shared(viewer.Interests, picked.Interests),
		LikedYou:        profile.Likes(picked, viewer),
		Mode:            mode,
		PoolSize:        len(pool),
	}, nil
}

// eligiblePool re-applies the base filter: visible, not the viewer, not
// already liked by the viewer. A like counts only when both halves are
// recorded. Candidates who liked the viewer stay.
func eligiblePool(viewer *profile.Profile, listed []*profile.Profile) []*profile.Profile {
	pool := make([]*profile.Profile, 0, len(listed))
	for _, p := range listed {
		if p == nil || !p.Visible || p.ID == viewer.ID || profile.Likes(viewer, p) {
			continue
		}
		pool = append(pool, p)
	}
	return pool
}

// candidateSet narrows the pool by shared interests and tops it up from the
// rest of the pool when too few profiles overlap.
func (h *NextCandidateHandler) candidateSet(viewer *profile.Profile, pool []*profile.Profile) ([]*profile.Profile, string) {
	if !viewer.InterestSearch || len(viewer.Interests) == 0 || !h.interestSearchEnabled() {
		return pool, ModeRandom
	}

	matching := make([]*profile.Profile, 0, len(pool))
	rest := make([]*profile.Profile, 0, len(pool))
	for _, p := range pool {
		if interest.Overlaps(viewer.Interests, p.Interests) {
			matching = append(matching, p)
		} else {
			rest = append(rest, p)
		}
	}

	if len(matching) >= h.cfg.MinInterestMatches {
		return matching, ModeInterest
	}

	set := matching
	for _, i := range h.perm(len(rest)) {
		if len(set) >= h.cfg.TopUpTarget {
			break
		}
		set = append(set, rest[i])
	}
	return set, ModeTopUp
}

func (h *NextCandidateHandler) interestSearchEnabled() bool {
	if h.cfg.InterestSearchEnabled == nil {
		return true
	}
	return h.cfg.InterestSearchEnabled()
}

func (h *NextCandidateHandler) intn(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rnd.Intn(n)
}

func (h *NextCandidateHandler) perm(n int) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rnd.Perm(n)
}

func modeMetric(mode string) string {
	switch mode {
	case ModeInterest:
		return metrics.CandidateInterest
	case ModeTopUp:
		return metrics.CandidateTopUp
	default:
		return metrics.CandidateRandom
	}
}
