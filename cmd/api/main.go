package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/debate-go-api/internal/config"
	"github.com/noah-isme/debate-go-api/internal/database"
	"github.com/noah-isme/debate-go-api/internal/handler"
	"github.com/noah-isme/debate-go-api/internal/middleware"
	"github.com/noah-isme/debate-go-api/internal/repository"
	"github.com/noah-isme/debate-go-api/internal/router"
	"github.com/noah-isme/debate-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	debateRepo := repository.NewDebateRepository(db)
	messageRepo := repository.NewDebateMessageRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	spectatorRepo := repository.NewSpectatorMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var viewerRepo repository.ViewerRepository
	switch cfg.PresenceBackend {
	case config.PresenceBackendRedis:
		viewerRepo = repository.NewRedisViewerRepository(redisClient, cfg.RealtimeChannel)
	default:
		viewerRepo = repository.NewViewerRepository(db)
	}

	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	dispatcher := service.NewNotificationDispatcher(userRepo, notificationService, service.DispatcherConfig{
		Workers:         cfg.NotificationWorkers,
		QueueSize:       cfg.NotificationQueueSize,
		DeliveryTimeout: cfg.NotificationTimeout,
	}, logger)
	liveService := service.NewLiveService(debateRepo, spectatorRepo, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	debateService := service.NewDebateService(debateRepo, messageRepo, userRepo, dispatcher, liveService, validate, logger)
	presenceService := service.NewPresenceService(debateRepo, viewerRepo, liveService, logger)
	challengeService := service.NewChallengeService(challengeRepo, debateRepo, userRepo, dispatcher, validate, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	sweepService := service.NewSweepService(debateRepo, debateService, presenceService, logger)

	messageLimiter := router.MessageLimiter("debate-messages", cfg.MessagesPerMinute)
	chatLimiter := router.MessageLimiter("spectator-chat", cfg.MessagesPerMinute)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:        &logger,
		AllowOrigins:  cfg.AllowOrigins,
		AccessLogging: cfg.AccessLogging,
	})
	router.Register(app, cfg, router.Dependencies{
		DebateHandler:       handler.NewDebateHandler(debateService, validate, messageLimiter, logger),
		PresenceHandler:     handler.NewPresenceHandler(presenceService, validate, logger),
		ChallengeHandler:    handler.NewChallengeHandler(challengeService, validate, logger),
		UserHandler:         handler.NewUserHandler(userService, debateService, logger),
		LiveHandler:         handler.NewLiveHandler(liveService, chatLimiter, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive),
		AdminSweepHandler:   handler.NewAdminSweepHandler(sweepService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		OptionalJWT:         middleware.JWTOptional(cfg.JWTSecret),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	notificationService.Start(ctx)
	liveService.Start(ctx)
	dispatcher.Start(ctx)

	workers.Add(1)
	go func() {
		defer workers.Done()
		sweepService.Run(ctx, cfg.SweepInterval)
	}()

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	waitForShutdown(app, logger, func() {
		workers.Wait()
		dispatcher.Wait()
	})
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger, drain func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	done := make(chan struct{})
	go func() {
		drain()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn().Msg("background workers did not stop before the shutdown deadline")
	}

	logger.Info().Msg("server stopped")
}
