package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/internal/application/command"
	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/infrastructure/external/telegram"
	"github.com/waykegoat/MATCH/internal/infrastructure/persistence/memory"
	"github.com/waykegoat/MATCH/internal/interface/telegram/handler"
	"github.com/waykegoat/MATCH/internal/interface/telegram/middleware"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
	"github.com/waykegoat/MATCH/internal/interface/telegram/session"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fake Bot API
// ─────────────────────────────────────────────────────────────────────────────

type sent struct {
	method string
	chatID int64
	text   string
	markup interface{}
	alert  bool
}

type fakeSender struct {
	mu      sync.Mutex
	calls   []sent
	editErr error
}

func (f *fakeSender) record(s sent) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *fakeSender) Calls() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.calls...)
}

func (f *fakeSender) SendMessage(_ context.Context, p telegram.SendMessageParams) (*telegram.Message, error) {
	f.record(sent{method: "sendMessage", chatID: p.ChatID, text: p.Text, markup: p.ReplyMarkup})
	return &telegram.Message{MessageID: 1}, nil
}

func (f *fakeSender) SendPhoto(_ context.Context, p telegram.SendPhotoParams) (*telegram.Message, error) {
	f.record(sent{method: "sendPhoto", chatID: p.ChatID, text: p.Caption, markup: p.ReplyMarkup})
	return &telegram.Message{MessageID: 2}, nil
}

func (f *fakeSender) EditMessageText(_ context.Context, chatID, _ int64, text string, kb *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	f.record(sent{method: "editMessageText", chatID: chatID, text: text, markup: kb})
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &telegram.Message{MessageID: 3}, nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, _ string, text string, showAlert bool) error {
	f.record(sent{method: "answerCallbackQuery", text: text, alert: showAlert})
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update builders
// ─────────────────────────────────────────────────────────────────────────────

func textUpdate(userID int64, text string) *telegram.Update {
	msg := &telegram.Message{
		MessageID: 10,
		From:      &telegram.User{ID: userID, FirstName: "Ann", Username: "ann"},
		Chat:      &telegram.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		n := len(text)
		for i, c := range text {
			if c == ' ' {
				n = i
				break
			}
		}
		msg.Entities = []telegram.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	}
	return &telegram.Update{UpdateID: 1, Message: msg}
}

func callbackUpdate(userID int64, data string) *telegram.Update {
	return &telegram.Update{UpdateID: 2, CallbackQuery: &telegram.CallbackQuery{
		ID:   "cbq",
		From: &telegram.User{ID: userID},
		Data: data,
		Message: &telegram.Message{
			MessageID: 77,
			Chat:      &telegram.Chat{ID: userID},
		},
	}}
}

func static(text string) Route {
	return func(context.Context, handler.Request) (*handler.Response, error) {
		return &handler.Response{Replies: []handler.Reply{{Text: text}}}, nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Routing
// ─────────────────────────────────────────────────────────────────────────────

func TestRouter_LongestCallbackPrefixWins(t *testing.T) {
	s := &fakeSender{}
	r := NewRouter(s, RouterConfig{Logger: logger.Discard()})
	r.Callback(presenter.CbSkip, static("skip"))
	r.Callback(presenter.CbSkipAge, static("skip age"))
	r.Callback(presenter.CbInterest, static("interest"))
	r.Callback(presenter.CbInterestSearch, static("interest search"))

	var routes []string
	r.Use(func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req middleware.Request) error {
			routes = append(routes, req.Route)
			return next(ctx, req)
		}
	})

	ctx := context.Background()
	require.NoError(t, r.Dispatch(ctx, callbackUpdate(1, "skip_age")))
	require.NoError(t, r.Dispatch(ctx, callbackUpdate(1, "skip_42")))
	require.NoError(t, r.Dispatch(ctx, callbackUpdate(1, "interest_search")))
	require.NoError(t, r.Dispatch(ctx, callbackUpdate(1, "interest_3")))

	assert.Equal(t, []string{"cb:skip_age", "cb:skip", "cb:interest_search", "cb:interest"}, routes)

	var texts []string
	for _, c := range s.Calls() {
		if c.method == "sendMessage" {
			texts = append(texts, c.text)
		}
	}
	assert.Equal(t, []string{"skip age", "skip", "interest search", "interest"}, texts)
}

func TestRouter_CommandArgsAndUnknown(t *testing.T) {
	s := &fakeSender{}
	r := NewRouter(s, RouterConfig{Logger: logger.Discard()})

	var got handler.Request
	r.Command("stats", func(_ context.Context, req handler.Request) (*handler.Response, error) {
		got = req
		return nil, nil
	})
	r.Fallback(static("fallback"))

	ctx := context.Background()
	require.NoError(t, r.Dispatch(ctx, textUpdate(5, "/stats fresh")))
	assert.Equal(t, "fresh", got.Text)
	assert.Equal(t, int64(5), got.UserID)
	assert.Equal(t, "ann", got.Username)

	require.NoError(t, r.Dispatch(ctx, textUpdate(5, "/nope")))
	calls := s.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "fallback", calls[0].text)
}

func TestRouter_TextGoesToWizardThenFallback(t *testing.T) {
	s := &fakeSender{}
	r := NewRouter(s, RouterConfig{Logger: logger.Discard()})
	r.Button(presenter.BtnHelp, "help", static("help"))
	r.Fallback(static("fallback"))

	inWizard := false
	r.Text(func(_ context.Context, req handler.Request) (*handler.Response, bool, error) {
		if !inWizard {
			return nil, false, nil
		}
		return &handler.Response{Replies: []handler.Reply{{Text: "wizard:" + req.Text}}}, true, nil
	})

	ctx := context.Background()
	require.NoError(t, r.Dispatch(ctx, textUpdate(1, "hello")))
	inWizard = true
	require.NoError(t, r.Dispatch(ctx, textUpdate(1, "Nova")))
	require.NoError(t, r.Dispatch(ctx, textUpdate(1, presenter.BtnHelp)))

	calls := s.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "fallback", calls[0].text)
	assert.Equal(t, "wizard:Nova", calls[1].text)
	assert.Equal(t, "help", calls[2].text)
}

func TestRouter_PhotoRoute(t *testing.T) {
	s := &fakeSender{}
	r := NewRouter(s, RouterConfig{Logger: logger.Discard()})

	var photo string
	r.Photo(func(_ context.Context, req handler.Request) (*handler.Response, error) {
		photo = req.PhotoID
		return nil, nil
	})

	u := textUpdate(1, "")
	u.Message.Photo = []telegram.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	require.NoError(t, r.Dispatch(context.Background(), u))
	assert.Equal(t, "large", photo)
}

func TestRouter_IgnoresUpdatesWithoutSender(t *testing.T) {
	r := NewRouter(&fakeSender{}, RouterConfig{Logger: logger.Discard()})
	assert.NoError(t, r.Dispatch(context.Background(), &telegram.Update{UpdateID: 1}))
}

// ─────────────────────────────────────────────────────────────────────────────
// Delivery
// ─────────────────────────────────────────────────────────────────────────────

func TestDeliver_AnswersCallbackFirstAndEdits(t *testing.T) {
	s := &fakeSender{}
	r := NewRouter(s, RouterConfig{Logger: logger.Discard()})

	req := handler.Request{UserID: 1, ChatID: 1, MessageID: 77, CallbackID: "cbq"}
	kb := presenter.NewInlineKeyboard().AddRow(presenter.CallbackButton("ok", "ok"))
	resp := &handler.Response{
		Toast: "done",
		Replies: []handler.Reply{
			{Text: "edited", Keyboard: kb, Edit: true},
			{Text: "menu", MainMenu: true},
		},
	}

	require.NoError(t, r.Deliver(context.Background(), req, resp))

	calls := s.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "answerCallbackQuery", calls[0].method)
	assert.Equal(t, "done", calls[0].text)
	assert.Equal(t, "editMessageText", calls[1].method)
	assert.NotNil(t, calls[1].markup)
	assert.Equal(t, "sendMessage", calls[2].method)
	assert.IsType(t, &telegram.ReplyKeyboardMarkup{}, calls[2].markup)
}

func TestDeliver_EditFallbacks(t *testing.T) {
	ctx := context.Background()
	req := handler.Request{UserID: 1, ChatID: 1, MessageID: 77}
	resp := &handler.Response{Replies: []handler.Reply{{Text: "same", Edit: true}}}

	s := &fakeSender{editErr: &telegram.APIError{Code: 400, Description: "Bad Request: message is not modified"}}
	r := NewRouter(s, RouterConfig{Logger: logger.Discard()})
	require.NoError(t, r.Deliver(ctx, req, resp))
	require.Len(t, s.Calls(), 1, "not modified is not an error")

	s = &fakeSender{editErr: errors.New("message can't be edited")}
	r = NewRouter(s, RouterConfig{Logger: logger.Discard()})
	require.NoError(t, r.Deliver(ctx, req, resp))
	calls := s.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "sendMessage", calls[1].method)
}

func TestDeliver_PhotoCard(t *testing.T) {
	s := &fakeSender{}
	r := NewRouter(s, RouterConfig{Logger: logger.Discard()})

	err := r.Deliver(context.Background(), handler.Request{UserID: 1, ChatID: 1}, &handler.Response{
		Replies: []handler.Reply{{Text: "card", PhotoID: "file"}},
	})
	require.NoError(t, err)

	calls := s.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendPhoto", calls[0].method)
	assert.Equal(t, "card", calls[0].text)
}

// ─────────────────────────────────────────────────────────────────────────────
// Full wiring
// ─────────────────────────────────────────────────────────────────────────────

func TestRegisterRoutes_StartThenGate(t *testing.T) {
	repo := memory.NewProfileRepository()
	log := logger.Discard()
	h := handler.New(handler.Deps{
		Sessions:       session.NewStore(session.NewMemoryBackend(), session.DefaultTTL),
		SaveProfile:    command.NewSaveProfileHandler(repo, nil, log),
		Like:           command.NewLikeProfileHandler(repo, nil, log),
		UpdateSettings: command.NewUpdateSettingsHandler(repo, nil),
		Attachments:    command.NewManageAttachmentsHandler(repo),
		RemoveProfile:  command.NewRemoveProfileHandler(repo, nil, log),
		NextCandidate:  query.NewNextCandidateHandler(repo, query.DefaultSelectorConfig(), log),
		GetProfile:     query.NewGetProfileHandler(repo),
		Relations:      query.NewGetRelationsHandler(repo),
		Stats:          query.NewGetStatsHandler(repo, nil, log),
		Logger:         log,
	})

	s := &fakeSender{}
	r := NewRouter(s, RouterConfig{Logger: log})
	RegisterRoutes(r, h)

	var missing []string
	protected := make(map[string]bool)
	for _, route := range r.Routes() {
		if !openRoutes[route] {
			protected[route] = true
		}
	}
	gate := middleware.NewProfileGate(repo, middleware.ProfileGateConfig{
		Protected: protected,
		OnMissing: func(_ context.Context, req middleware.Request) { missing = append(missing, req.Route) },
	})
	r.Use(gate.Middleware())

	ctx := context.Background()
	require.NoError(t, r.Dispatch(ctx, textUpdate(1, presenter.BtnSearch)))
	assert.Equal(t, []string{"menu:search"}, missing)

	require.NoError(t, r.Dispatch(ctx, textUpdate(1, "/start")))
	require.NoError(t, r.Dispatch(ctx, textUpdate(1, "Nova")))
	require.NoError(t, r.Dispatch(ctx, callbackUpdate(1, presenter.CbRegion+"EU")))

	calls := s.Calls()
	require.GreaterOrEqual(t, len(calls), 4)
	assert.Contains(t, calls[0].text, "Как тебя зовут?")
	assert.Contains(t, calls[1].text, "регион")
	assert.Equal(t, "answerCallbackQuery", calls[2].method)
	assert.Equal(t, "editMessageText", calls[3].method)
	assert.Len(t, missing, 1, "wizard routes are open")
}
