package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE SETTINGS COMMAND
// Скрыть/показать анкету, переключить поиск по интересам.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateSettingsCommand contains optional settings updates.
// nil values mean "don't change".
type UpdateSettingsCommand struct {
	ProfileID int64

	// Visible - показывать ли анкету в поиске.
	Visible *bool

	// InterestSearch - подбирать ли по общим интересам.
	InterestSearch *bool
}

// Validate validates the command.
func (c UpdateSettingsCommand) Validate() error {
	if !profile.ID(c.ProfileID).IsValid() {
		return profile.ErrInvalidProfileID
	}
	if c.Visible == nil && c.InterestSearch == nil {
		return errors.New("update_settings: nothing to update")
	}
	return nil
}

// UpdateSettingsResult contains the final settings.
type UpdateSettingsResult struct {
	Visible        bool
	InterestSearch bool

	// ChangedFields lists which fields were changed.
	ChangedFields []string

	Events []shared.Event
}

// UpdateSettingsHandler handles the UpdateSettingsCommand.
type UpdateSettingsHandler struct {
	repo      profile.Repository
	publisher shared.EventPublisher // optional
	now       func() time.Time
}

// NewUpdateSettingsHandler creates a new UpdateSettingsHandler.
func NewUpdateSettingsHandler(repo profile.Repository, publisher shared.EventPublisher) *UpdateSettingsHandler {
	return &UpdateSettingsHandler{repo: repo, publisher: publisher, now: time.Now}
}

// Handle executes the update settings command.
func (h *UpdateSettingsHandler) Handle(ctx context.Context, cmd UpdateSettingsCommand) (*UpdateSettingsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_settings: validation failed: %w", err)
	}

	now := h.now()
	changed := make([]string, 0, 2)
	var visibilityChanged bool

	p, err := h.repo.Update(ctx, profile.ID(cmd.ProfileID), func(p *profile.Profile) error {
		changed = changed[:0]
		visibilityChanged = false
		if cmd.Visible != nil && p.SetVisible(*cmd.Visible, now) {
			changed = append(changed, "visible")
			visibilityChanged = true
		}
		if cmd.InterestSearch != nil && p.SetInterestSearch(*cmd.InterestSearch, now) {
			changed = append(changed, "interest_search")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_settings: failed to save: %w", err)
	}

	result := &UpdateSettingsResult{
		Visible:        p.Visible,
		InterestSearch: p.InterestSearch,
		ChangedFields:  changed,
	}

	if visibilityChanged {
		evType := shared.EventProfileHidden
		if p.Visible {
			evType = shared.EventProfileShown
		}
		ev := shared.NewProfileChangedEvent(evType, cmd.ProfileID)
		result.Events = append(result.Events, ev)
		if h.publisher != nil {
			_ = h.publisher.Publish(ev)
		}
	}

	return result, nil
}
