// Package handler contains Telegram handlers for GamerMatch.
// Each handler follows the pattern: receive update → validate → call application layer → format response.
// Handlers never talk to the Bot API directly; the router delivers the Response.
package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/waykegoat/MATCH/internal/application/command"
	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
	"github.com/waykegoat/MATCH/internal/interface/telegram/session"
	"github.com/waykegoat/MATCH/pkg/logger"
	"github.com/waykegoat/MATCH/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE
// ══════════════════════════════════════════════════════════════════════════════

// Request is a parsed update: a command, a menu button, free text, a photo or a callback.
type Request struct {
	// UserID is the sender's Telegram ID, which is also the profile ID.
	UserID int64

	// ChatID is where replies go.
	ChatID int64

	// MessageID is the message the update refers to (the keyboard owner for callbacks).
	MessageID int64

	// Username is the sender's @handle without "@".
	Username string

	// FirstName is the sender's first name, used as the default profile name.
	FirstName string

	// Text is the message text, command arguments or callback data.
	Text string

	// PhotoID is the largest uploaded photo, if any.
	PhotoID string

	// CallbackID is set for callback queries.
	CallbackID string
}

// IsCallback reports whether the request came from an inline button.
func (r Request) IsCallback() bool {
	return r.CallbackID != ""
}

// Reply is one outgoing message.
type Reply struct {
	// Text is the message text or photo caption (HTML).
	Text string

	// PhotoID sends a photo with Text as caption.
	PhotoID string

	// Keyboard is the inline keyboard to attach.
	Keyboard *presenter.InlineKeyboard

	// MainMenu attaches the main menu reply keyboard.
	MainMenu bool

	// Edit replaces the callback's message instead of sending a new one.
	Edit bool
}

// Response contains everything to send back.
type Response struct {
	Replies []Reply

	// Toast is the callback answer text.
	Toast string

	// Alert shows the toast as a modal alert.
	Alert bool
}

func reply(text string, kb *presenter.InlineKeyboard) *Response {
	return &Response{Replies: []Reply{{Text: text, Keyboard: kb}}}
}

func edit(text string, kb *presenter.InlineKeyboard) *Response {
	return &Response{Replies: []Reply{{Text: text, Keyboard: kb, Edit: true}}}
}

func toast(text string) *Response {
	return &Response{Toast: text}
}

func card(view *presenter.CardView) Reply {
	return Reply{Text: view.Text, PhotoID: view.PhotoID, Keyboard: view.Keyboard}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// Deps aggregates everything the handlers call.
type Deps struct {
	Sessions *session.Store

	// Commands
	SaveProfile    *command.SaveProfileHandler
	Like           *command.LikeProfileHandler
	UpdateSettings *command.UpdateSettingsHandler
	Attachments    *command.ManageAttachmentsHandler
	RemoveProfile  *command.RemoveProfileHandler

	// Queries
	NextCandidate *query.NextCandidateHandler
	GetProfile    *query.GetProfileHandler
	Relations     *query.GetRelationsHandler
	Stats         *query.GetStatsHandler

	// IsAdmin decides who may run /stats.
	IsAdmin func(userID int64) bool

	// PhotoUploadsEnabled is the runtime switch for photo uploads. nil means enabled.
	PhotoUploadsEnabled func() bool

	// OnProfileRemoved is called after a user deletes their profile.
	OnProfileRemoved func(userID int64)

	// LikeRetrier retries likes that failed with a transient storage error.
	LikeRetrier *retry.Retrier

	// ListLimit caps the likes and matches lists.
	ListLimit int

	Logger *slog.Logger
}

// Handlers implements every bot route.
type Handlers struct {
	deps      Deps
	keyboards *presenter.KeyboardBuilder
	cards     *presenter.CardPresenter
	logger    *slog.Logger
	now       func() time.Time
}

// New creates the handlers.
func New(deps Deps) *Handlers {
	if deps.IsAdmin == nil {
		deps.IsAdmin = func(int64) bool { return false }
	}
	if deps.LikeRetrier == nil {
		deps.LikeRetrier = retry.DatabaseRetrier(retry.WithRetryIf(shared.IsRetryable))
	}
	if deps.ListLimit <= 0 {
		deps.ListLimit = 20
	}

	kb := presenter.NewKeyboardBuilder()
	return &Handlers{
		deps:      deps,
		keyboards: kb,
		cards:     presenter.NewCardPresenter(kb),
		logger:    logger.OrDefault(deps.Logger).With(logger.Component("telegram_handlers")),
		now:       time.Now,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

const (
	textNoProfile = "🤔 У тебя ещё нет анкеты. Нажми /start, чтобы её создать."
	textGone      = "😶 Эта анкета больше недоступна."
	textFailed    = "😔 Что-то пошло не так. Попробуй ещё раз через минуту."
)

// failure converts an application error into a user-facing response.
// Unexpected errors are logged and returned so the router records them.
func (h *Handlers) failure(req Request, op string, err error) (*Response, error) {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound) && !req.IsCallback():
		return reply(textNoProfile, nil), nil
	case shared.IsNotFound(err):
		return h.maybeToast(req, textGone), nil
	case shared.IsValidation(err) || shared.IsInvalidState(err):
		return h.maybeToast(req, "⚠️ Так нельзя."), nil
	}

	h.logger.Error("handler failed",
		logger.Operation(op),
		"telegram_id", req.UserID,
		logger.Err(err),
	)
	resp := h.maybeToast(req, textFailed)
	return resp, err
}

func (h *Handlers) maybeToast(req Request, text string) *Response {
	if req.IsCallback() {
		return &Response{Toast: text, Alert: true}
	}
	return reply(text, nil)
}

func (h *Handlers) photoUploadsEnabled() bool {
	return h.deps.PhotoUploadsEnabled == nil || h.deps.PhotoUploadsEnabled()
}
