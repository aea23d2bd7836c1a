package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	"github.com/waykegoat/MATCH/pkg/logger"
	"github.com/waykegoat/MATCH/pkg/validation"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE PROFILE COMMAND
// Создаёт анкету при первой отправке или обновляет существующую.
// Книга лайков, флаги и фото при обновлении не сбрасываются.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileSubmission - полностью заполненная анкета из мастера.
// Ядро никогда не получает частичное состояние мастера.
type ProfileSubmission struct {
	UserID    int64    `validate:"gt=0"`
	Username  string   `validate:"max=64"`
	Name      string   `validate:"required,min=2,max=50"`
	Age       int      `validate:"omitempty,gte=13,lte=100"`
	Region    string   `validate:"required,oneof=EU RU SA NA"`
	Platform  string   `validate:"required,oneof=PC Mobile PS XBOX"`
	About     string   `validate:"max=500"`
	Interests []string `validate:"required,min=1,dive,required,max=64"`
}

// SaveProfileCommand contains the submission to store.
type SaveProfileCommand struct {
	Submission ProfileSubmission

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SaveProfileCommand) Validate() error {
	s := c.Submission
	s.Name = strings.TrimSpace(s.Name)
	if err := validation.Struct(s); err != nil {
		return shared.WrapError("profile", "SaveProfile", shared.ErrValidation, "invalid submission", err)
	}
	return nil
}

// SaveProfileResult contains the stored profile.
type SaveProfileResult struct {
	Profile *profile.Profile

	// Created - true, если анкета создана этим вызовом.
	Created bool

	Events []shared.Event
}

// SaveProfileHandler handles the SaveProfileCommand.
type SaveProfileHandler struct {
	repo      profile.Repository
	publisher shared.EventPublisher // optional
	logger    *slog.Logger
	now       func() time.Time
}

// NewSaveProfileHandler creates a new SaveProfileHandler.
func NewSaveProfileHandler(
	repo profile.Repository,
	publisher shared.EventPublisher,
	log *slog.Logger,
) *SaveProfileHandler {
	return &SaveProfileHandler{
		repo:      repo,
		publisher: publisher,
		logger:    logger.OrDefault(log).With("handler", "save_profile"),
		now:       time.Now,
	}
}

// Handle executes the save profile command.
func (h *SaveProfileHandler) Handle(ctx context.Context, cmd SaveProfileCommand) (*SaveProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("save_profile: %w", err)
	}

	s := cmd.Submission
	id := profile.ID(s.UserID)
	details := profile.Details{
		Username:  s.Username,
		Name:      s.Name,
		Age:       s.Age,
		Region:    profile.Region(s.Region),
		Platform:  profile.Platform(s.Platform),
		About:     s.About,
		Interests: s.Interests,
	}
	now := h.now()

	// Update first: the common case after the first submission.
	updated, err := h.repo.Update(ctx, id, func(p *profile.Profile) error {
		return p.ApplyDetails(details, now)
	})
	switch {
	case err == nil:
		ev := shared.NewProfileChangedEvent(shared.EventProfileUpdated, s.UserID)
		ev.BaseEvent = ev.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		h.publishEvent(ev)
		return &SaveProfileResult{Profile: updated, Events: []shared.Event{ev}}, nil
	case !errors.Is(err, profile.ErrProfileNotFound):
		return nil, fmt.Errorf("save_profile: failed to update: %w", err)
	}

	p, err := profile.New(id, details, now)
	if err != nil {
		return nil, fmt.Errorf("save_profile: %w", err)
	}
	if err := h.repo.Create(ctx, p); err != nil {
		if errors.Is(err, profile.ErrProfileExists) {
			// Параллельная первая отправка: вторая становится обновлением.
			updated, uerr := h.repo.Update(ctx, id, func(p *profile.Profile) error {
				return p.ApplyDetails(details, now)
			})
			if uerr != nil {
				return nil, fmt.Errorf("save_profile: failed to update: %w", uerr)
			}
			return &SaveProfileResult{Profile: updated}, nil
		}
		return nil, fmt.Errorf("save_profile: failed to create: %w", err)
	}

	ev := shared.NewProfileCreatedEvent(s.UserID, p.Name, p.Interests)
	ev.BaseEvent = ev.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	h.publishEvent(ev)

	h.logger.Info("profile created", logger.ProfileID(s.UserID), "interests", len(p.Interests))

	return &SaveProfileResult{Profile: p, Created: true, Events: []shared.Event{ev}}, nil
}

func (h *SaveProfileHandler) publishEvent(ev shared.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ev); err != nil {
		h.logger.Error("failed to publish event", logger.EventType(string(ev.EventType())), logger.Err(err))
	}
}
