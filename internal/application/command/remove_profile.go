package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMOVE PROFILE COMMAND
// Удаляет анкету целиком. Ссылки на неё в чужих книгах лайков остаются
// и отфильтровываются при чтении.
// ══════════════════════════════════════════════════════════════════════════════

// RemoveProfileCommand identifies the profile to delete.
type RemoveProfileCommand struct {
	ProfileID int64

	// ByOperator - удаление инициировано администратором.
	ByOperator bool
}

// Validate validates the command.
func (c RemoveProfileCommand) Validate() error {
	if !profile.ID(c.ProfileID).IsValid() {
		return profile.ErrInvalidProfileID
	}
	return nil
}

// RemoveProfileResult contains the result of deletion.
type RemoveProfileResult struct {
	Events []shared.Event
}

// RemoveProfileHandler handles the RemoveProfileCommand.
type RemoveProfileHandler struct {
	repo      profile.Repository
	publisher shared.EventPublisher // optional
	logger    *slog.Logger
}

// NewRemoveProfileHandler creates a new RemoveProfileHandler.
func NewRemoveProfileHandler(repo profile.Repository, publisher shared.EventPublisher, log *slog.Logger) *RemoveProfileHandler {
	return &RemoveProfileHandler{
		repo:      repo,
		publisher: publisher,
		logger:    logger.OrDefault(log).With("handler", "remove_profile"),
	}
}

// Handle executes the remove command.
func (h *RemoveProfileHandler) Handle(ctx context.Context, cmd RemoveProfileCommand) (*RemoveProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("remove_profile: validation failed: %w", err)
	}

	if err := h.repo.Delete(ctx, profile.ID(cmd.ProfileID)); err != nil {
		return nil, fmt.Errorf("remove_profile: %w", err)
	}

	ev := shared.NewProfileChangedEvent(shared.EventProfileRemoved, cmd.ProfileID)
	if h.publisher != nil {
		if err := h.publisher.Publish(ev); err != nil {
			h.logger.Error("failed to publish event", logger.EventType(string(ev.EventType())), logger.Err(err))
		}
	}

	h.logger.Info("profile removed", logger.ProfileID(cmd.ProfileID), "by_operator", cmd.ByOperator)
	return &RemoveProfileResult{Events: []shared.Event{ev}}, nil
}
