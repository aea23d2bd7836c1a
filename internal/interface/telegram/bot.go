package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/infrastructure/external/telegram"
	"github.com/waykegoat/MATCH/internal/interface/telegram/handler"
	"github.com/waykegoat/MATCH/internal/interface/telegram/middleware"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// Workers is the number of update workers. Updates of one user always
	// land on the same worker, so they are handled in order.
	Workers int

	// QueueSize is the per-worker buffer.
	QueueSize int

	// HandlerTimeout bounds a single update.
	HandlerTimeout time.Duration

	// ShutdownTimeout is how long Run waits for queued updates after polling stops.
	ShutdownTimeout time.Duration

	// RateLimit configures the per-user limiter. OnLimited is set by the bot.
	RateLimit middleware.RateLimitConfig

	// SlowUpdateThreshold marks slow handlers in logs.
	SlowUpdateThreshold time.Duration

	Logger *slog.Logger
	Debug  bool
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Workers:             8,
		QueueSize:           64,
		HandlerTimeout:      30 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		RateLimit:           middleware.DefaultRateLimitConfig(),
		SlowUpdateThreshold: 2 * time.Second,
	}
}

// Routes that work without a profile: onboarding and help.
var openRoutes = map[string]bool{
	"cmd:start":          true,
	"cmd:help":           true,
	"cmd:cancel":         true,
	"menu:help":          true,
	"cb:region":          true,
	"cb:platform":        true,
	"cb:skip_age":        true,
	"cb:interest":        true,
	"cb:interests_done":  true,
	RouteText:            true,
	RouteUnknownCommand:  true,
	RouteUnknownCallback: true,
}

const textNeedProfile = "🤔 У тебя ещё нет анкеты. Нажми /start, чтобы её создать."

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot receives updates by long polling and feeds them to the router.
type Bot struct {
	config  BotConfig
	client  *telegram.Client
	router  *Router
	limiter *middleware.RateLimiter
	gate    *middleware.ProfileGate
	logger  *slog.Logger

	running atomic.Bool
	queues  []chan *telegram.Update
	wg      sync.WaitGroup

	stats botCounters
}

type botCounters struct {
	startedAt atomic.Int64
	received  atomic.Int64
	handled   atomic.Int64
	failed    atomic.Int64
}

// BotStats is a snapshot of runtime counters.
type BotStats struct {
	StartedAt       time.Time `json:"started_at"`
	UpdatesReceived int64     `json:"updates_received"`
	UpdatesHandled  int64     `json:"updates_handled"`
	Errors          int64     `json:"errors"`
	Running         bool      `json:"running"`
}

// NewBot wires handlers, routes and middlewares.
func NewBot(client *telegram.Client, h *handler.Handlers, profiles profile.Repository, config BotConfig) (*Bot, error) {
	if client == nil {
		return nil, errors.New("telegram client is required")
	}
	if h == nil {
		return nil, errors.New("handlers are required")
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 30 * time.Second
	}

	log := logger.OrDefault(config.Logger).With(logger.Component("telegram_bot"))
	b := &Bot{
		config: config,
		client: client,
		logger: log,
	}

	b.router = NewRouter(client, RouterConfig{Logger: config.Logger})
	RegisterRoutes(b.router, h)

	rl := config.RateLimit
	rl.OnLimited = b.onLimited
	b.limiter = middleware.NewRateLimiter(rl)

	protected := make(map[string]bool)
	for _, route := range b.router.Routes() {
		if !openRoutes[route] {
			protected[route] = true
		}
	}
	b.gate = middleware.NewProfileGate(profiles, middleware.ProfileGateConfig{
		Protected: protected,
		OnMissing: b.onMissingProfile,
	})

	b.router.Use(
		middleware.Metrics(middleware.MetricsConfig{
			Logger:               config.Logger,
			SlowRequestThreshold: config.SlowUpdateThreshold,
		}),
		middleware.Recovery(middleware.RecoveryConfig{
			Logger:           config.Logger,
			EnableStackTrace: config.Debug,
			OnPanic:          b.onPanic,
		}),
		b.limiter.Middleware(),
		b.gate.Middleware(),
	)

	return b, nil
}

// RegisterRoutes binds every handler to its command, button and callback.
func RegisterRoutes(r *Router, h *handler.Handlers) {
	// Commands
	r.Command("start", h.Start)
	r.Command("help", h.Help)
	r.Command("cancel", h.Cancel)
	r.Command("profile", h.MyProfile)
	r.Command("search", h.Search)
	r.Command("likes", h.Likes)
	r.Command("matches", h.Matches)
	r.Command("settings", h.Settings)
	r.Command("stats", h.Stats)

	// Main menu
	r.Button(presenter.BtnMyProfile, "profile", h.MyProfile)
	r.Button(presenter.BtnSearch, "search", h.Search)
	r.Button(presenter.BtnLikes, "likes", h.Likes)
	r.Button(presenter.BtnMatches, "matches", h.Matches)
	r.Button(presenter.BtnSettings, "settings", h.Settings)
	r.Button(presenter.BtnHelp, "help", h.Help)

	// Search and likes
	r.Callback(presenter.CbLike, h.Like)
	r.Callback(presenter.CbSkip, h.Skip)
	r.Callback(presenter.CbNext, h.Search)
	r.Callback(presenter.CbViewLike, h.ViewLike)
	r.Callback(presenter.CbViewLikers, h.Likes)

	// Own profile
	r.Callback(presenter.CbEditProfile, h.EditProfile)
	r.Callback(presenter.CbSearchSettings, h.Settings)
	r.Callback(presenter.CbDeleteProfile, h.DeleteProfile)
	r.Callback(presenter.CbConfirmDelete, h.ConfirmDelete)
	r.Callback(presenter.CbCancelDelete, h.CancelDelete)

	// Photos
	r.Callback(presenter.CbManagePhotos, h.ManagePhotos)
	r.Callback(presenter.CbAddPhoto, h.AddPhoto)
	r.Callback(presenter.CbDeletePhoto, h.DeletePhoto)
	r.Callback(presenter.CbDeleteAllPhotos, h.DeleteAllPhotos)
	r.Callback(presenter.CbPhotosDone, h.PhotosDone)

	// Settings
	r.Callback(presenter.CbHideProfile, h.ToggleSetting)
	r.Callback(presenter.CbShowProfile, h.ToggleSetting)
	r.Callback(presenter.CbRandomSearch, h.ToggleSetting)
	r.Callback(presenter.CbInterestSearch, h.ToggleSetting)

	// Wizard
	r.Callback(presenter.CbRegion, h.Region)
	r.Callback(presenter.CbPlatform, h.Platform)
	r.Callback(presenter.CbSkipAge, h.SkipAge)
	r.Callback(presenter.CbInterest, h.ToggleInterest)
	r.Callback(presenter.CbInterestsDone, h.InterestsDone)

	r.Photo(h.Photo)
	r.Text(h.WizardText)
	r.Fallback(h.Fallback)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Run polls updates until ctx is cancelled, then drains the queues.
func (b *Bot) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("bot is already running")
	}
	defer b.running.Store(false)
	b.stats.startedAt.Store(time.Now().Unix())

	if err := b.verifyToken(ctx); err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}
	if err := b.client.DeleteWebhook(ctx, false); err != nil {
		b.logger.Warn("failed to delete webhook", logger.Err(err))
	}

	b.queues = make([]chan *telegram.Update, b.config.Workers)
	for i := range b.queues {
		b.queues[i] = make(chan *telegram.Update, b.config.QueueSize)
		b.wg.Add(1)
		go b.worker(b.queues[i])
	}

	go b.limiter.RunCleanup(ctx, time.Minute)

	b.logger.Info("telegram bot started", "workers", b.config.Workers)
	err := b.client.StartPolling(ctx, b.enqueue)

	for _, q := range b.queues {
		close(q)
	}
	b.drain()
	return err
}

func (b *Bot) drain() {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	timeout := b.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
		b.logger.Info("all updates handled")
	case <-time.After(timeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	}
}

// IsRunning reports whether Run is active.
func (b *Bot) IsRunning() bool {
	return b.running.Load()
}

func (b *Bot) verifyToken(ctx context.Context) error {
	me, err := b.client.GetMe(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("bot verified", "id", me.ID, "username", me.Username)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// enqueue hands the update to the worker owning its user.
func (b *Bot) enqueue(ctx context.Context, update *telegram.Update) error {
	b.stats.received.Add(1)
	q := b.queues[shard(update.UserID(), len(b.queues))]
	select {
	case q <- update:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bot) worker(q <-chan *telegram.Update) {
	defer b.wg.Done()
	for update := range q {
		b.handle(update)
	}
}

// handle runs detached from the polling context so queued updates still
// finish during shutdown.
func (b *Bot) handle(update *telegram.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), b.config.HandlerTimeout)
	defer cancel()

	if err := b.router.Dispatch(ctx, update); err != nil {
		b.stats.failed.Add(1)
		b.logger.Error("failed to handle update",
			"update_id", update.UpdateID,
			"telegram_id", update.UserID(),
			logger.Err(err),
		)
		return
	}
	b.stats.handled.Add(1)
}

func shard(userID int64, n int) int {
	if userID < 0 {
		userID = -userID
	}
	return int(userID % int64(n))
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware callbacks
// ─────────────────────────────────────────────────────────────────────────────

func (b *Bot) onLimited(ctx context.Context, req middleware.Request, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds()) + 1
	b.notify(ctx, req, fmt.Sprintf("⏳ Слишком быстро! Попробуй через %d сек.", secs))
}

func (b *Bot) onMissingProfile(ctx context.Context, req middleware.Request) {
	b.notify(ctx, req, textNeedProfile)
}

func (b *Bot) onPanic(ctx context.Context, req middleware.Request) {
	b.notify(ctx, req, middleware.DefaultUserErrorMessage)
}

// notify answers a callback with an alert or sends a plain message.
func (b *Bot) notify(ctx context.Context, req middleware.Request, text string) {
	hreq := handler.Request{UserID: req.UserID, ChatID: req.ChatID, CallbackID: req.CallbackID}
	resp := &handler.Response{Toast: text, Alert: true}
	if !hreq.IsCallback() {
		resp = &handler.Response{Replies: []handler.Reply{{Text: text}}}
	}
	if err := b.router.Deliver(ctx, hreq, resp); err != nil {
		b.logger.Warn("failed to notify user", "telegram_id", req.UserID, logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ══════════════════════════════════════════════════════════════════════════════

// Stats returns current bot statistics.
func (b *Bot) Stats() BotStats {
	var started time.Time
	if ts := b.stats.startedAt.Load(); ts > 0 {
		started = time.Unix(ts, 0)
	}
	return BotStats{
		StartedAt:       started,
		UpdatesReceived: b.stats.received.Load(),
		UpdatesHandled:  b.stats.handled.Load(),
		Errors:          b.stats.failed.Load(),
		Running:         b.IsRunning(),
	}
}

// Router returns the router.
func (b *Bot) Router() *Router {
	return b.router
}

// ForgetProfile drops the cached profile check after deletion.
func (b *Bot) ForgetProfile(telegramID int64) {
	b.gate.Forget(telegramID)
}
