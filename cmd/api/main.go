package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-timeline/internal/config"
	"github.com/noah-isme/gema-activity-timeline/internal/database"
	"github.com/noah-isme/gema-activity-timeline/internal/events"
	"github.com/noah-isme/gema-activity-timeline/internal/handler"
	"github.com/noah-isme/gema-activity-timeline/internal/i18n"
	"github.com/noah-isme/gema-activity-timeline/internal/middleware"
	"github.com/noah-isme/gema-activity-timeline/internal/models"
	"github.com/noah-isme/gema-activity-timeline/internal/repository"
	"github.com/noah-isme/gema-activity-timeline/internal/router"
	"github.com/noah-isme/gema-activity-timeline/internal/service"
	"github.com/noah-isme/gema-activity-timeline/internal/timeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&models.Activity{}); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate activity log")
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	catalog, err := i18n.Load(cfg.Timeline.Locale)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load translations")
	}

	renderer, err := timeline.NewRenderer(catalog)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build timeline renderer")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	activityRepo := repository.NewActivityRepository(db)
	recordRepo := repository.NewRecordRepository(db)

	timelineService := service.NewTimelineService(activityRepo, recordRepo, renderer, cfg.Timeline, validate, redisClient, logger)
	timelineHandler := handler.NewTimelineHandler(timelineService, catalog.Locales(), logger)

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		listener := events.NewActivityListener(natsConn, cfg.NATSSubject, timelineService, logger)
		if err := listener.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start activity listener")
		}
	}

	probes := []handler.Probe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		probes = append(probes, handler.Probe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, MetricsPrefix: "/api/v1/timeline"})
	router.Register(app, cfg, router.Dependencies{
		TimelineHandler: timelineHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:    probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	shutdown(app, natsConn, logger)
}

func shutdown(app *fiber.App, natsConn *nats.Conn, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			logger.Warn().Err(err).Msg("failed to drain nats connection")
		}
	}

	logger.Info().Msg("server stopped")
}
