// Package telegram implements the Telegram Bot interface for GamerMatch.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/waykegoat/MATCH/internal/infrastructure/external/telegram"
	"github.com/waykegoat/MATCH/internal/interface/telegram/handler"
	"github.com/waykegoat/MATCH/internal/interface/telegram/middleware"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Route handles one resolved update.
type Route func(ctx context.Context, req handler.Request) (*handler.Response, error)

// TextRoute handles free text and reports whether it consumed it.
type TextRoute func(ctx context.Context, req handler.Request) (*handler.Response, bool, error)

// Sender is the part of the Bot API the router delivers responses through.
type Sender interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	SendPhoto(ctx context.Context, params telegram.SendPhotoParams) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string, showAlert bool) error
}

// Route names that are not bound to a command, button or callback prefix.
const (
	RoutePhoto           = "msg:photo"
	RouteText            = "msg:text"
	RouteUnknownCommand  = "cmd:unknown"
	RouteUnknownCallback = "cb:unknown"
)

type namedRoute struct {
	name  string
	route Route
}

type callbackRoute struct {
	prefix string
	namedRoute
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Logger *slog.Logger

	// Middlewares wrap every routed update, first one outermost.
	Middlewares []middleware.Middleware
}

// Router maps updates to handlers and delivers their responses.
// Registration is not concurrency-safe; register everything before Dispatch.
type Router struct {
	sender      Sender
	logger      *slog.Logger
	middlewares []middleware.Middleware

	commands  map[string]namedRoute
	buttons   map[string]namedRoute
	callbacks []callbackRoute
	photo     Route
	text      TextRoute
	fallback  Route

	mainMenu *telegram.ReplyKeyboardMarkup
}

// NewRouter creates a new router.
func NewRouter(sender Sender, config RouterConfig) *Router {
	return &Router{
		sender:      sender,
		logger:      logger.OrDefault(config.Logger).With(logger.Component("telegram_router")),
		middlewares: config.Middlewares,
		commands:    make(map[string]namedRoute),
		buttons:     make(map[string]namedRoute),
		mainMenu:    telegram.ReplyKeyboard(2, false, presenter.MainMenuButtons()...),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Registration
// ─────────────────────────────────────────────────────────────────────────────

// Command registers /name.
func (r *Router) Command(name string, route Route) {
	r.commands[name] = namedRoute{name: "cmd:" + name, route: route}
}

// Button registers a main menu button by its exact text.
func (r *Router) Button(text, name string, route Route) {
	r.buttons[text] = namedRoute{name: "menu:" + name, route: route}
}

// Callback registers a callback data prefix. The longest matching prefix wins,
// so "skip_age" and "skip_" can coexist.
func (r *Router) Callback(prefix string, route Route) {
	name := "cb:" + strings.TrimSuffix(prefix, "_")
	r.callbacks = append(r.callbacks, callbackRoute{prefix: prefix, namedRoute: namedRoute{name: name, route: route}})
	sort.SliceStable(r.callbacks, func(i, j int) bool {
		return len(r.callbacks[i].prefix) > len(r.callbacks[j].prefix)
	})
}

// Use appends middlewares; they run after those from RouterConfig.
func (r *Router) Use(mws ...middleware.Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

// Photo registers the photo message route.
func (r *Router) Photo(route Route) { r.photo = route }

// Text registers the free text route.
func (r *Router) Text(route TextRoute) { r.text = route }

// Fallback registers the route for text nobody consumed.
func (r *Router) Fallback(route Route) { r.fallback = route }

// Commands returns registered command names.
func (r *Router) Commands() []string {
	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Routes returns every route name the router can resolve to.
func (r *Router) Routes() []string {
	out := []string{RoutePhoto, RouteText, RouteUnknownCommand, RouteUnknownCallback}
	for _, nr := range r.commands {
		out = append(out, nr.name)
	}
	for _, nr := range r.buttons {
		out = append(out, nr.name)
	}
	for _, cb := range r.callbacks {
		out = append(out, cb.name)
	}
	sort.Strings(out)
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Dispatch
// ─────────────────────────────────────────────────────────────────────────────

// Dispatch routes one update through the middlewares to its handler and
// delivers the response. Updates without a sender are ignored.
func (r *Router) Dispatch(ctx context.Context, update *telegram.Update) error {
	req, ok := requestFromUpdate(update)
	if !ok {
		return nil
	}

	name, route := r.resolve(update, req)

	terminal := func(ctx context.Context, _ middleware.Request) error {
		resp, err := route(ctx, req)
		if derr := r.Deliver(ctx, req, resp); derr != nil {
			r.logger.Warn("failed to deliver response",
				"route", name,
				"telegram_id", req.UserID,
				logger.Err(derr),
			)
			if err == nil {
				err = derr
			}
		}
		return err
	}

	return middleware.Chain(terminal, r.middlewares...)(ctx, middleware.Request{
		UserID:     req.UserID,
		ChatID:     req.ChatID,
		Route:      name,
		CallbackID: req.CallbackID,
	})
}

// resolve picks the route for the update.
func (r *Router) resolve(update *telegram.Update, req handler.Request) (string, Route) {
	if update.CallbackQuery != nil {
		for _, cb := range r.callbacks {
			if strings.HasPrefix(req.Text, cb.prefix) {
				return cb.name, cb.route
			}
		}
		return RouteUnknownCallback, r.unknownCallback
	}

	msg := update.Message
	if cmd := telegram.ExtractCommand(msg); cmd != "" {
		if nr, ok := r.commands[cmd]; ok {
			return nr.name, nr.route
		}
		return RouteUnknownCommand, r.fallbackRoute
	}

	if req.PhotoID != "" && r.photo != nil {
		return RoutePhoto, r.photo
	}

	if nr, ok := r.buttons[strings.TrimSpace(msg.Text)]; ok {
		return nr.name, nr.route
	}

	return RouteText, r.freeText
}

func (r *Router) freeText(ctx context.Context, req handler.Request) (*handler.Response, error) {
	if r.text != nil {
		resp, handled, err := r.text(ctx, req)
		if handled {
			return resp, err
		}
	}
	return r.fallbackRoute(ctx, req)
}

func (r *Router) fallbackRoute(ctx context.Context, req handler.Request) (*handler.Response, error) {
	if r.fallback == nil {
		return nil, nil
	}
	return r.fallback(ctx, req)
}

func (r *Router) unknownCallback(_ context.Context, req handler.Request) (*handler.Response, error) {
	r.logger.Warn("unknown callback", "data", req.Text, "telegram_id", req.UserID)
	return &handler.Response{Toast: "Кнопка устарела 🤷"}, nil
}

// requestFromUpdate flattens a message or callback into a handler.Request.
func requestFromUpdate(update *telegram.Update) (handler.Request, bool) {
	switch {
	case update == nil:
		return handler.Request{}, false

	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.From == nil {
			return handler.Request{}, false
		}
		req := handler.Request{
			UserID:     cq.From.ID,
			ChatID:     cq.From.ID,
			Username:   cq.From.Username,
			FirstName:  cq.From.FirstName,
			Text:       cq.Data,
			CallbackID: cq.ID,
		}
		if cq.Message != nil {
			req.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				req.ChatID = cq.Message.Chat.ID
			}
		}
		return req, true

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil {
			return handler.Request{}, false
		}
		req := handler.Request{
			UserID:    msg.From.ID,
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
			Username:  msg.From.Username,
			FirstName: msg.From.FirstName,
			Text:      msg.Text,
			PhotoID:   msg.LargestPhoto(),
		}
		if telegram.ExtractCommand(msg) != "" {
			req.Text = telegram.ExtractCommandArgs(msg)
		}
		return req, true
	}

	return handler.Request{}, false
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DELIVERY
// ══════════════════════════════════════════════════════════════════════════════

// Deliver sends resp to the chat of req. Callback queries are always
// answered, first, so the button stops spinning.
func (r *Router) Deliver(ctx context.Context, req handler.Request, resp *handler.Response) error {
	var errs []error

	if req.IsCallback() {
		toast, alert := "", false
		if resp != nil {
			toast, alert = resp.Toast, resp.Alert
		}
		if err := r.sender.AnswerCallbackQuery(ctx, req.CallbackID, toast, alert); err != nil {
			errs = append(errs, err)
		}
	}
	if resp == nil {
		return errors.Join(errs...)
	}

	for _, reply := range resp.Replies {
		if err := r.send(ctx, req, reply); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) send(ctx context.Context, req handler.Request, reply handler.Reply) error {
	keyboard := convertKeyboard(reply.Keyboard)

	if reply.Edit && req.MessageID != 0 && reply.PhotoID == "" && !reply.MainMenu {
		_, err := r.sender.EditMessageText(ctx, req.ChatID, req.MessageID, reply.Text, keyboard)
		if err == nil || telegram.IsNotModified(err) {
			return nil
		}
		// Photo messages and messages older than 48h cannot be edited.
		r.logger.Debug("edit failed, sending a new message", logger.Err(err))
	}

	var markup interface{}
	switch {
	case keyboard != nil:
		markup = keyboard
	case reply.MainMenu:
		markup = r.mainMenu
	}

	if reply.PhotoID != "" {
		_, err := r.sender.SendPhoto(ctx, telegram.SendPhotoParams{
			ChatID:      req.ChatID,
			FileID:      reply.PhotoID,
			Caption:     reply.Text,
			ParseMode:   presenter.ParseModeHTML,
			ReplyMarkup: markup,
		})
		return err
	}

	_, err := r.sender.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:            req.ChatID,
		Text:              reply.Text,
		ParseMode:         presenter.ParseModeHTML,
		DisableWebPreview: true,
		ReplyMarkup:       markup,
	})
	return err
}

// convertKeyboard converts presenter.InlineKeyboard to telegram.InlineKeyboardMarkup.
func convertKeyboard(kb *presenter.InlineKeyboard) *telegram.InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}

	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: make([][]telegram.InlineKeyboardButton, len(kb.Rows)),
	}

	for i, row := range kb.Rows {
		markup.InlineKeyboard[i] = make([]telegram.InlineKeyboardButton, len(row))
		for j, btn := range row {
			markup.InlineKeyboard[i][j] = telegram.InlineKeyboardButton{
				Text:         btn.Text,
				CallbackData: btn.CallbackData,
				URL:          btn.URL,
			}
		}
	}

	return markup
}
