// Package main - точка входа GamerMatch: Telegram-бот для поиска тиммейтов
// по играм, региону и платформе.
//
// Слои:
//   - Domain: анкеты, лайки, мэтчи, индекс интересов
//   - Application: команды, запросы, обработчики событий
//   - Infrastructure: PostgreSQL, Redis, Telegram Bot API, метрики
//   - Interface: Telegram-роутер и HTTP (пробы, /metrics, admin API)
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waykegoat/MATCH/config"
	"github.com/waykegoat/MATCH/internal/application/command"
	"github.com/waykegoat/MATCH/internal/application/eventhandler"
	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	tgclient "github.com/waykegoat/MATCH/internal/infrastructure/external/telegram"
	"github.com/waykegoat/MATCH/internal/infrastructure/messaging"
	"github.com/waykegoat/MATCH/internal/infrastructure/persistence/memory"
	"github.com/waykegoat/MATCH/internal/infrastructure/persistence/postgres"
	"github.com/waykegoat/MATCH/internal/infrastructure/persistence/redis"
	"github.com/waykegoat/MATCH/internal/infrastructure/scheduler"
	"github.com/waykegoat/MATCH/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/waykegoat/MATCH/internal/interface/http"
	"github.com/waykegoat/MATCH/internal/interface/http/handlers"
	"github.com/waykegoat/MATCH/internal/interface/telegram"
	"github.com/waykegoat/MATCH/internal/interface/telegram/handler"
	"github.com/waykegoat/MATCH/internal/interface/telegram/session"
	"github.com/waykegoat/MATCH/pkg/logger"
	"github.com/waykegoat/MATCH/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// eventBus - шина событий с возможностью закрытия.
type eventBus interface {
	shared.EventBus
	io.Closer
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:   cfg.Observability.LogLevel,
		Format:  cfg.Observability.LogFormat,
		Service: cfg.App.Name,
	})
	slog.SetDefault(log)

	log.Info("starting GamerMatch",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"storage", cfg.App.StorageDriver,
		"event_bus", cfg.App.EventBus,
	)

	health := handlers.NewHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ АНКЕТ
	// ─────────────────────────────────────────────────────────────────────────
	repo, closeRepo, err := setupStorage(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeRepo()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально): сессии мастера и кэш статистики
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache    *redis.Cache
		memorySession = session.NewMemoryBackend()
		sessions      = session.NewStore(memorySession, session.DefaultTTL)
		statsCache    query.StatsCache
	)
	if !cfg.Redis.Disabled {
		redisCache, err = redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			if cfg.App.EventBus == config.EventBusRedis {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			log.Warn("redis unavailable, sessions stay in memory", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			sessions = session.NewStore(redis.NewSessionStore(redisCache), session.DefaultTTL)
			memorySession = nil
			statsCache = redis.NewStatsCache(redisCache)
			health.Optional("redis", handlers.PingCheck(redisCache))
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := setupEventBus(cfg, redisCache, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. TELEGRAM API И УВЕДОМЛЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	client := tgclient.NewClient(tgclient.ClientConfig{
		Token:         cfg.Telegram.Token,
		BaseURL:       cfg.Telegram.BaseURL,
		Timeout:       cfg.Telegram.RequestTimeout,
		RetryAttempts: cfg.Telegram.RetryAttempts,
		RetryDelay:    time.Second,
		PollTimeout:   int(cfg.Telegram.PollingTimeout / time.Second),
		Logger:        log,
		Debug:         cfg.App.Debug,
	})

	notifier := tgclient.NewNotifier(client, tgclient.BreakerConfig{
		Name:         "telegram_notify",
		Timeout:      cfg.Matching.BreakerTimeout,
		MinRequests:  uint32(cfg.Matching.BreakerMinRequests),
		FailureRatio: cfg.Matching.BreakerFailureRatio,
	}, log)

	flags := cfg.Features
	onMatch := eventhandler.NewOnMatchEventsHandler(notifier, log, eventhandler.NotifyConfig{
		LikesEnabled:   flags.Check(config.FeatureNotifyLikes),
		MatchesEnabled: flags.Check(config.FeatureNotifyMatches),
		SendTimeout:    cfg.Matching.NotifyTimeout,
	})
	if err := onMatch.Register(bus); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПРИКЛАДНОЙ СЛОЙ
	// ─────────────────────────────────────────────────────────────────────────
	stats := query.NewGetStatsHandler(repo, statsCache, log)

	var bot *telegram.Bot
	h := handler.New(handler.Deps{
		Sessions: sessions,

		SaveProfile:    command.NewSaveProfileHandler(repo, bus, log),
		Like:           command.NewLikeProfileHandler(repo, bus, log),
		UpdateSettings: command.NewUpdateSettingsHandler(repo, bus),
		Attachments:    command.NewManageAttachmentsHandler(repo),
		RemoveProfile:  command.NewRemoveProfileHandler(repo, bus, log),

		NextCandidate: query.NewNextCandidateHandler(repo, query.SelectorConfig{
			MinInterestMatches:    cfg.Matching.MinInterestMatches,
			TopUpTarget:           cfg.Matching.TopUpTarget,
			InterestSearchEnabled: flags.Check(config.FeatureInterestSearch),
		}, log),
		GetProfile: query.NewGetProfileHandler(repo),
		Relations:  query.NewGetRelationsHandler(repo),
		Stats:      stats,

		IsAdmin:             cfg.IsAdmin,
		PhotoUploadsEnabled: flags.Check(config.FeaturePhotoUploads),
		OnProfileRemoved: func(userID int64) {
			if bot != nil {
				bot.ForgetProfile(userID)
			}
		},
		LikeRetrier: retry.DatabaseRetrier(retry.WithRetryIf(shared.IsRetryable)),
		ListLimit:   cfg.Matching.ListLimit,
		Logger:      log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 7. TELEGRAM-БОТ
	// ─────────────────────────────────────────────────────────────────────────
	botConfig := telegram.DefaultBotConfig()
	botConfig.Workers = cfg.Telegram.Workers
	botConfig.RateLimit.Rate = cfg.Telegram.UserRateLimit
	botConfig.RateLimit.Burst = cfg.Telegram.UserRateBurst
	botConfig.RateLimit.Whitelist = cfg.Telegram.AdminIDs
	botConfig.ShutdownTimeout = cfg.App.ShutdownTimeout
	botConfig.Logger = log
	botConfig.Debug = cfg.App.Debug

	bot, err = telegram.NewBot(client, h, repo, botConfig)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	health.Require("telegram", handlers.RunningCheck(bot.IsRunning))

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP: пробы, метрики, admin API
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 2)

	var httpSrv *httpserver.Server
	if cfg.HTTP.Enabled {
		httpCfg := httpserver.DefaultConfig()
		httpCfg.Addr = cfg.HTTP.Addr
		httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
		httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
		httpCfg.EnableMetrics = cfg.Observability.MetricsEnabled
		httpCfg.APIKeys = cfg.HTTP.APIKeys

		httpSrv = httpserver.NewServer(httpCfg, httpserver.Dependencies{
			Health:   health,
			Stats:    stats,
			BotStats: func() any { return bot.Stats() },
			Logger:   log,
			Version:  cfg.App.Version,
		})
		go func() {
			if err := <-httpSrv.StartAsync(); err != nil {
				errCh <- err
			}
		}()
		go httpSrv.RunLimiterCleanup(ctx, 10*time.Minute)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Jobs.Enabled {
		sched, err = setupScheduler(cfg, stats, memorySession, client, log)
		if err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК И ОСТАНОВКА
	// ─────────────────────────────────────────────────────────────────────────
	botCtx, cancelBot := context.WithCancel(ctx)
	defer cancelBot()

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		if err := bot.Run(botCtx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("telegram bot: %w", err)
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if sched != nil {
			_ = sched.Run(botCtx)
		}
	}()

	log.Info("GamerMatch is running", "http", cfg.HTTP.Enabled, "http_addr", cfg.HTTP.Addr)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case runErr = <-errCh:
		log.Error("service error", logger.Err(runErr))
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())
	cancelBot()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	for name, done := range map[string]<-chan struct{}{"bot": botDone, "scheduler": schedDone} {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Warn("component did not stop in time", logger.Component(name))
		}
	}

	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		}
	}

	log.Info("shutdown completed")
	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// SETUP HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupStorage подключает PostgreSQL (с миграциями) или in-memory хранилище.
func setupStorage(ctx context.Context, cfg *config.Config, log *slog.Logger, health *handlers.HealthChecker) (profile.Repository, func(), error) {
	if cfg.App.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory profile storage, data is lost on restart")
		return memory.NewProfileRepository(), func() {}, nil
	}

	log.Info("connecting to database")
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if status, err := migrator.Status(ctx); err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			log.Info("migrations completed", "total", len(status))
		}
	}

	health.Require("postgres", handlers.PingCheck(conn))
	return postgres.NewProfileRepository(conn), func() {
		log.Info("closing database connection")
		conn.Close()
	}, nil
}

// setupEventBus создаёт локальную шину или Redis pub/sub поверх неё.
func setupEventBus(cfg *config.Config, cache *redis.Cache, log *slog.Logger) (eventBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.AsyncMode = true
	local.Logger = log

	if cfg.App.EventBus != config.EventBusRedis {
		return messaging.NewInMemoryEventBus(local), nil
	}
	if cache == nil {
		return nil, errors.New("EVENT_BUS=redis requires a redis connection")
	}

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         messaging.NewGoRedisClient(cache.Client()),
		LocalBusConfig: local,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis event bus: %w", err)
	}
	return bus, nil
}

// setupScheduler регистрирует фоновые задачи.
func setupScheduler(cfg *config.Config, stats jobs.StatsQuerier, sweeper *session.MemoryBackend, client *tgclient.Client, log *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(scheduler.Config{Logger: log})

	if err := sched.Register(jobs.NewRefreshStatsJob(stats, log), scheduler.Every(cfg.Jobs.StatsRefreshInterval)); err != nil {
		return nil, err
	}
	if sweeper != nil {
		if err := sched.Register(jobs.NewSweepSessionsJob(sweeper, log), scheduler.Every(cfg.Jobs.SessionSweepInterval)); err != nil {
			return nil, err
		}
	}
	if cfg.Jobs.DailyReportHour >= 0 && len(cfg.Telegram.AdminIDs) > 0 {
		report := jobs.NewDailyReportJob(stats, client, cfg.Telegram.AdminIDs, log)
		if err := sched.Register(report, scheduler.DailyAt(cfg.Jobs.DailyReportHour, 0, time.UTC)); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
