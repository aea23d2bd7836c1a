// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/notification"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	"github.com/waykegoat/MATCH/internal/infrastructure/metrics"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIKE PROFILE COMMAND
// Единственная точка входа для лайка. Обновляет книги обоих профилей
// атомарно, определяет взаимность и формирует уведомления.
// Представлением и доставкой не занимается.
// ══════════════════════════════════════════════════════════════════════════════

// LikeProfileCommand contains the data for a like action.
type LikeProfileCommand struct {
	// ViewerID - кто ставит лайк.
	ViewerID int64

	// TargetID - кому.
	TargetID int64

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command. Self-like is rejected before any storage access.
func (c LikeProfileCommand) Validate() error {
	if !profile.ID(c.ViewerID).IsValid() || !profile.ID(c.TargetID).IsValid() {
		return profile.ErrInvalidProfileID
	}
	if c.ViewerID == c.TargetID {
		return profile.ErrSelfLike
	}
	return nil
}

// LikeProfileResult contains the result of a like.
type LikeProfileResult struct {
	// Result - liked или matched.
	Result profile.LikeResult

	// FirstLike - лайк записан впервые.
	FirstLike bool

	// NewMatch - мэтч образовался этим вызовом.
	NewMatch bool

	// Target - состояние цели после лайка.
	Target *profile.Profile

	// Notifications - что нужно доставить. Пусто для повторного лайка.
	Notifications []notification.Notification

	// Events - опубликованные доменные события.
	Events []shared.Event
}

// IsMatch reports whether the pair is mutual after this call.
func (r *LikeProfileResult) IsMatch() bool {
	return r.Result == profile.ResultMatched
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// LikeProfileHandler handles the LikeProfileCommand.
type LikeProfileHandler struct {
	repo      profile.Repository
	publisher shared.EventPublisher // optional
	logger    *slog.Logger
	now       func() time.Time
}

// NewLikeProfileHandler creates a new LikeProfileHandler.
func NewLikeProfileHandler(
	repo profile.Repository,
	publisher shared.EventPublisher,
	log *slog.Logger,
) *LikeProfileHandler {
	return &LikeProfileHandler{
		repo:      repo,
		publisher: publisher,
		logger:    logger.OrDefault(log).With("handler", "like_profile"),
		now:       time.Now,
	}
}

// Handle executes the like command.
func (h *LikeProfileHandler) Handle(ctx context.Context, cmd LikeProfileCommand) (*LikeProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		metrics.RecordLike(metrics.OutcomeRejected)
		return nil, fmt.Errorf("like_profile: %w", err)
	}

	viewerID, targetID := profile.ID(cmd.ViewerID), profile.ID(cmd.TargetID)

	var (
		outcome profile.LikeOutcome
		viewer  *profile.Profile
		target  *profile.Profile
	)

	err := h.repo.UpdatePair(ctx, viewerID, targetID, func(v, t *profile.Profile) error {
		if v == nil || t == nil {
			return profile.ErrUnknownUser
		}
		// Скрытый профиль не принимает новых лайков; повтор уже записанного лайка безопасен.
		if !t.Visible && !profile.Likes(v, t) {
			return profile.ErrTargetHidden
		}

		out, err := profile.RecordLike(v, t)
		if err != nil {
			return err
		}
		if out.FirstLike || out.NewMatch || out.Scrubbed || len(out.Drift) > 0 {
			now := h.now()
			v.UpdatedAt = now
			t.UpdatedAt = now
		}

		outcome = out
		viewer = v.Clone()
		target = t.Clone()
		return nil
	})
	if err != nil {
		if shared.IsValidation(err) || shared.IsNotFound(err) || shared.IsInvalidState(err) {
			metrics.RecordLike(metrics.OutcomeRejected)
		} else {
			metrics.RecordLike(metrics.OutcomeFailed)
		}
		return nil, fmt.Errorf("like_profile: %w", err)
	}

	h.reportDrift(outcome.Drift)
	h.recordOutcome(outcome)

	result := &LikeProfileResult{
		Result:    outcome.Result,
		FirstLike: outcome.FirstLike,
		NewMatch:  outcome.NewMatch,
		Target:    target,
	}
	result.Notifications = buildNotifications(outcome, viewer, target)
	result.Events = h.publish(cmd.CorrelationID, result.Notifications)

	h.logger.Info("like recorded",
		logger.ViewerID(cmd.ViewerID),
		logger.TargetID(cmd.TargetID),
		"result", string(outcome.Result),
		"first_like", outcome.FirstLike,
		"new_match", outcome.NewMatch,
	)

	return result, nil
}

// buildNotifications: лайк цели только при первом лайке; при новом мэтче
// по одному уведомлению каждой стороне.
func buildNotifications(out profile.LikeOutcome, viewer, target *profile.Profile) []notification.Notification {
	notes := make([]notification.Notification, 0, 3)
	if out.FirstLike {
		notes = append(notes, notification.NewLike(target.ID.Int64(), viewer.ID.Int64(), viewer.Name))
	}
	if out.NewMatch {
		notes = append(notes,
			notification.NewMatch(viewer.ID.Int64(), target.ID.Int64(), target.Name, target.Username),
			notification.NewMatch(target.ID.Int64(), viewer.ID.Int64(), viewer.Name, viewer.Username),
		)
	}
	return notes
}

// publish converts notifications into domain events. Publish failures are
// logged: delivery is fire-and-forget.
func (h *LikeProfileHandler) publish(correlationID string, notes []notification.Notification) []shared.Event {
	events := make([]shared.Event, 0, len(notes))
	for _, n := range notes {
		var ev shared.Event
		switch n.Kind {
		case notification.KindLike:
			e := shared.NewLikeReceivedEvent(n.PartnerID, n.RecipientID, n.PartnerName)
			e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
			ev = e
		case notification.KindMatch:
			e := shared.NewMatchCreatedEvent(n.RecipientID, n.PartnerID, n.PartnerName, n.PartnerUsername)
			e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
			ev = e
		default:
			continue
		}
		events = append(events, ev)

		if h.publisher == nil {
			continue
		}
		if err := h.publisher.Publish(ev); err != nil {
			h.logger.Error("failed to publish event",
				logger.EventType(string(ev.EventType())),
				logger.ProfileID(n.RecipientID),
				logger.Err(err),
			)
		}
	}
	return events
}

func (h *LikeProfileHandler) reportDrift(drift []profile.CounterDrift) {
	for _, d := range drift {
		metrics.RecordCounterDrift(string(d.Counter))
		h.logger.Warn("ledger counter drift repaired",
			logger.ProfileID(d.ProfileID.Int64()),
			"counter", string(d.Counter),
			"stored", d.Stored,
			"actual", d.Actual,
		)
	}
}

func (h *LikeProfileHandler) recordOutcome(out profile.LikeOutcome) {
	switch {
	case out.NewMatch:
		metrics.RecordLike(metrics.OutcomeMatched)
		metrics.RecordMatch()
	case out.FirstLike:
		metrics.RecordLike(metrics.OutcomeLiked)
	default:
		metrics.RecordLike(metrics.OutcomeRepeat)
	}
}
