package query

import (
	"context"
	"fmt"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/interest"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE READ MODELS
// Анкета, входящие лайки и мэтчи. Ссылки на удалённые анкеты
// отбрасываются при чтении.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileDTO represents a profile for display.
type ProfileDTO struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username,omitempty"`
	Name           string    `json:"name"`
	Age            int       `json:"age,omitempty"`
	Region         string    `json:"region"`
	Platform       string    `json:"platform"`
	About          string    `json:"about,omitempty"`
	Interests      []string  `json:"interests"`
	Visible        bool      `json:"visible"`
	InterestSearch bool      `json:"interest_search"`
	Attachments    []string  `json:"attachments"`
	LikedCount     int       `json:"liked_count"`
	LikedByCount   int       `json:"liked_by_count"`
	MatchedCount   int       `json:"matched_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToProfileDTO converts a domain profile into its DTO.
func ToProfileDTO(p *profile.Profile) ProfileDTO {
	return ProfileDTO{
		ID:             p.ID.Int64(),
		Username:       p.Username,
		Name:           p.Name,
		Age:            p.Age,
		Region:         string(p.Region),
		Platform:       string(p.Platform),
		About:          p.About,
		Interests:      append([]string(nil), p.Interests...),
		Visible:        p.Visible,
		InterestSearch: p.InterestSearch,
		Attachments:    append([]string{}, p.Attachments...),
		LikedCount:     p.Ledger.LikedCount(),
		LikedByCount:   p.Ledger.LikedByCount(),
		MatchedCount:   p.Ledger.MatchedCount(),
		CreatedAt:      p.CreatedAt,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Get Profile
// ─────────────────────────────────────────────────────────────────────────────

// GetProfileQuery asks for one profile.
type GetProfileQuery struct {
	ProfileID int64
}

// Validate validates the query.
func (q GetProfileQuery) Validate() error {
	if !profile.ID(q.ProfileID).IsValid() {
		return profile.ErrInvalidProfileID
	}
	return nil
}

// GetProfileHandler handles GetProfileQuery.
type GetProfileHandler struct {
	repo profile.Repository
}

// NewGetProfileHandler creates a new GetProfileHandler.
func NewGetProfileHandler(repo profile.Repository) *GetProfileHandler {
	return &GetProfileHandler{repo: repo}
}

// Handle returns the profile or profile.ErrProfileNotFound.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*profile.Profile, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_profile: %w", err)
	}
	p, err := h.repo.Get(ctx, profile.ID(q.ProfileID))
	if err != nil {
		return nil, fmt.Errorf("get_profile: %w", err)
	}
	return p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Get Likes / Get Matches
// ─────────────────────────────────────────────────────────────────────────────

// RelationKind selects which ledger set to list.
type RelationKind string

const (
	// RelationLikedBy - кто лайкнул меня.
	RelationLikedBy RelationKind = "liked_by"

	// RelationMatched - с кем взаимно.
	RelationMatched RelationKind = "matched"
)

// GetRelationsQuery lists profiles from one ledger set.
type GetRelationsQuery struct {
	ProfileID int64
	Kind      RelationKind

	// Limit - сколько анкет вернуть (по умолчанию 20, максимум 100).
	Limit int

	// ExcludeMatched - для входящих лайков: не показывать тех, с кем уже мэтч.
	ExcludeMatched bool
}

// Validate validates the query.
func (q GetRelationsQuery) Validate() error {
	if !profile.ID(q.ProfileID).IsValid() {
		return profile.ErrInvalidProfileID
	}
	if q.Kind != RelationLikedBy && q.Kind != RelationMatched {
		return fmt.Errorf("unknown relation %q", q.Kind)
	}
	return nil
}

// RelationEntry is one profile in a likes/matches list.
type RelationEntry struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Username string   `json:"username,omitempty"`
	Shared   []string `json:"shared_interests,omitempty"`
	Matched  bool     `json:"matched"`
}

// GetRelationsResult is the listing.
type GetRelationsResult struct {
	Entries []RelationEntry `json:"entries"`

	// Total - число существующих анкет в наборе (без удалённых).
	Total int `json:"total"`

	// Dangling - сколько ссылок указывало на удалённые анкеты.
	Dangling int `json:"dangling"`
}

// GetRelationsHandler handles GetRelationsQuery.
type GetRelationsHandler struct {
	repo profile.Repository
}

// NewGetRelationsHandler creates a new GetRelationsHandler.
func NewGetRelationsHandler(repo profile.Repository) *GetRelationsHandler {
	return &GetRelationsHandler{repo: repo}
}

// Handle executes the query.
func (h *GetRelationsHandler) Handle(ctx context.Context, q GetRelationsQuery) (*GetRelationsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_relations: %w", err)
	}

	owner, err := h.repo.Get(ctx, profile.ID(q.ProfileID))
	if err != nil {
		return nil, fmt.Errorf("get_relations: %w", err)
	}

	var ids []profile.ID
	switch q.Kind {
	case RelationLikedBy:
		ids = owner.Ledger.LikedByIDs()
	case RelationMatched:
		ids = owner.Ledger.MatchedIDs()
	}

	found, err := h.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get_relations: %w", err)
	}

	result := &GetRelationsResult{
		Entries:  make([]RelationEntry, 0, len(found)),
		Dangling: len(ids) - len(found),
	}

	limit := shared.ClampLimit(q.Limit)
	for _, p := range found {
		// Анкета с тем же ID могла быть создана заново: ссылка на прежнюю не считается.
		live := profile.Matched(owner, p)
		if q.Kind == RelationLikedBy {
			live = profile.Likes(p, owner)
		}
		if !live {
			result.Dangling++
			continue
		}

		matched := profile.Matched(owner, p)
		if q.ExcludeMatched && matched {
			continue
		}
		result.Total++
		if len(result.Entries) >= limit {
			continue
		}
		result.Entries = append(result.Entries, RelationEntry{
			ID:       p.ID.Int64(),
			Name:     p.Name,
			Username: p.Username,
			Shared:   interest.Shared(owner.Interests, p.Interests),
			Matched:  matched,
		})
	}
	return result, nil
}
