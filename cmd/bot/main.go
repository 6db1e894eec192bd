package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hiky-bot-backend/internal/bot"
	"hiky-bot-backend/internal/common/config"
	"hiky-bot-backend/internal/common/logger"
	hikeRepo "hiky-bot-backend/internal/features/hike/repository/sqlite"
	hikeService "hiky-bot-backend/internal/features/hike/service"
	maintRepo "hiky-bot-backend/internal/features/maintenance/repository/sqlite"
	maintService "hiky-bot-backend/internal/features/maintenance/service"
	queryRepo "hiky-bot-backend/internal/features/query/repository/sqlite"
	queryService "hiky-bot-backend/internal/features/query/service"
	userRepo "hiky-bot-backend/internal/features/user/repository/sqlite"
	userService "hiky-bot-backend/internal/features/user/service"
	httpserver "hiky-bot-backend/internal/http"
	"hiky-bot-backend/internal/notify"
	"hiky-bot-backend/internal/platform/redis"
	"hiky-bot-backend/internal/platform/sqlite"
	"hiky-bot-backend/internal/platform/telegram"
	"hiky-bot-backend/internal/platform/weather"
	"hiky-bot-backend/internal/ratelimit"
	"hiky-bot-backend/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init("hiky-bot", cfg.Debug)
	lg := logger.With("main")
	lg.Info().Bool("debug", cfg.Debug).Msg("starting hiky bot backend")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	if err := sqlite.Migrate(ctx, db); err != nil {
		lg.Fatal().Err(err).Msg("failed to migrate database")
	}
	lg.Info().Str("path", cfg.Database.Path).Msg("database ready")

	// Sessions prefer redis so restarts keep conversations alive; without
	// it the bot still works, sessions just live in memory.
	var sessions bot.SessionStore
	var redisClient *redis.Client
	redisClient, err = redis.Open(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		lg.Warn().Err(err).Msg("redis unavailable, sessions will not survive restarts")
		redisClient = nil
		sessions = bot.NewMemoryStore()
	} else {
		defer redisClient.Close()
		sessions = bot.NewRedisStore(redisClient.Client)
		lg.Info().Msg("redis connected")
	}

	userRepository := userRepo.NewRepository(db)
	hikeRepository := hikeRepo.NewRepository(db)
	maintRepository := maintRepo.NewRepository(db)

	users := userService.NewService(userRepository)
	if cfg.Telegram.OwnerID != 0 {
		if err := users.EnsureOwner(ctx, cfg.Telegram.OwnerID); err != nil {
			lg.Fatal().Err(err).Msg("failed to grant owner admin")
		}
	}
	hikes := hikeService.NewService(hikeRepository, users)
	maint := maintService.NewService(maintRepository, users)
	queries := queryService.NewService(queryRepo.NewRunner(db), queryRepo.NewTemplateStore(db), users)

	tg := telegram.NewClient(cfg.Telegram.BotToken)
	dispatcher := notify.NewDispatcher(tg)
	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowSecs)*time.Second)

	var weatherSource scheduler.WeatherSource
	weatherClient := weather.NewClient(cfg.Weather.APIKey)
	if weatherClient.Enabled() {
		weatherSource = weatherClient
		lg.Info().Msg("weather forecasts enabled")
	}

	engine := bot.NewEngine(sessions, tg, users, hikes, maint, queries, limiter, tg, tg, bot.Config{
		GroupID:    cfg.Telegram.GroupID,
		InviteLink: cfg.Telegram.InviteLink,
	})

	sweeps := scheduler.New(hikes, maint, users, dispatcher, weatherSource, scheduler.Config{
		ReminderHour:        cfg.Scheduler.ReminderHour,
		MaintenanceInterval: time.Duration(cfg.Scheduler.MaintenanceSweepMinutes) * time.Minute,
	})
	sweeps.Start()

	health := httpserver.NewServer(cfg.Health.Port, cfg.Debug, db, redisClient)
	health.Start()

	poller := telegram.NewPoller(tg, cfg.Telegram.PollTimeout, engine.HandleEvent)
	go poller.Run(ctx)
	lg.Info().Msg("polling for updates")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info().Msg("shutting down")
	cancel()
	sweeps.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("health server shutdown failed")
	}
	lg.Info().Msg("bye")
}
