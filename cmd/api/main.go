package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"p2p-match-engine/config"
	httpHandler "p2p-match-engine/internal/adapter/http/handler"
	"p2p-match-engine/internal/adapter/notify"
	memStorage "p2p-match-engine/internal/adapter/storage/memory"
	pgStorage "p2p-match-engine/internal/adapter/storage/postgres"
	redisStorage "p2p-match-engine/internal/adapter/storage/redis"
	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/internal/service"
	"p2p-match-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting P2P Match Engine")

	ctx := context.Background()

	// Initialize the queue store
	var (
		queueRepo      ports.QueueRepository
		matchRepo      ports.MatchRepository
		historyRepo    ports.HistoryRepository
		transactor     ports.DBTransactor
		healthCheckers []ports.HealthChecker
	)

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		log.Info().Msg("PostgreSQL connected")

		queueRepo = pgStorage.NewQueueRepo(pool)
		matchRepo = pgStorage.NewMatchRepo(pool)
		historyRepo = pgStorage.NewHistoryRepo(pool)
		transactor = pgStorage.NewTransactor(pool)
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
	case "memory":
		store := memStorage.NewStore()
		queueRepo = store.QueueRepo()
		matchRepo = store.MatchRepo()
		historyRepo = store.HistoryRepo()
		transactor = store
		healthCheckers = append(healthCheckers, store)
	default:
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("Unknown storage driver")
	}

	// Initialize Redis (optional: rate limiting + stats cache)
	var (
		rateLimitStore *redisStorage.RateLimitStore
		statsCache     ports.StatsCache
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		statsCache = redisStorage.NewStatsCache(rdb, cfg.Stats.CacheTTL)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	matcher := service.NewMatcher(matcherConfig(cfg.Matching))

	// Notification channel
	var notifier ports.Notifier
	httpClient := &http.Client{Timeout: cfg.Notify.Timeout}
	switch cfg.Notify.Channel {
	case "webhook":
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret, sigSvc, httpClient, log)
	case "telegram":
		notifier = notify.NewTelegramNotifier(cfg.Notify.TelegramToken, "", httpClient, log)
	case "none":
		log.Info().Msg("Notification delivery disabled")
	default:
		log.Fatal().Str("channel", cfg.Notify.Channel).Msg("Unknown notification channel")
	}

	dispatcher := service.NewDispatcher(notifier, historyRepo, service.DispatcherConfig{
		BufferSize:      cfg.Dispatcher.BufferSize,
		Workers:         cfg.Dispatcher.Workers,
		DeliveryTimeout: cfg.Dispatcher.DeliveryTimeout,
	}, log)

	queueSvc := service.NewQueueService(queueRepo, matchRepo, historyRepo, transactor, matcher, dispatcher, log)
	statsSvc := service.NewStatsService(queueRepo, statsCache, log)

	// Operator auth (disabled when no secret is configured)
	var tokenSvc ports.TokenService
	if cfg.JWT.Secret != "" {
		tokenSvc = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	} else {
		log.Warn().Msg("JWT secret not set, operator routes are unauthenticated")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		QueueSvc:       queueSvc,
		StatsSvc:       statsSvc,
		HistoryRepo:    historyRepo,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain in-flight notifications before exiting
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Dispatcher forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// matcherConfig converts the configured weights into the matcher's form.
func matcherConfig(cfg config.MatchingConfig) service.MatcherConfig {
	return service.MatcherConfig{
		PaymentTypeBonus:     cfg.PaymentTypeBonus,
		ProximityTightBonus:  cfg.ProximityTightBonus,
		ProximityMediumBonus: cfg.ProximityMediumBonus,
		ProximityWideBonus:   cfg.ProximityWideBonus,
		ProximityTight:       decimal.NewFromInt(cfg.ProximityTight),
		ProximityMedium:      decimal.NewFromInt(cfg.ProximityMedium),
		ProximityWide:        decimal.NewFromInt(cfg.ProximityWide),
		DirectionBonus:       cfg.DirectionBonus,
		AgeBonusStep:         cfg.AgeBonusStep,
		AgeBonusInterval:     cfg.AgeBonusInterval,
		AgeBonusCap:          cfg.AgeBonusCap,
	}
}
