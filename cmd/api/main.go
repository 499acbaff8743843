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
	"github.com/rs/zerolog"

	"github.com/casecamp/casecamp-api/internal/config"
	"github.com/casecamp/casecamp-api/internal/database"
	"github.com/casecamp/casecamp-api/internal/engine"
	"github.com/casecamp/casecamp-api/internal/handler"
	"github.com/casecamp/casecamp-api/internal/middleware"
	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/repository"
	"github.com/casecamp/casecamp-api/internal/router"
	"github.com/casecamp/casecamp-api/internal/service"
	"github.com/casecamp/casecamp-api/internal/trigger"
	cloud "github.com/casecamp/casecamp-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Week{},
		&models.Case{},
		&models.Submission{},
		&models.GlobalLeaderboardEntry{},
		&models.WeeklyLeaderboardEntry{},
		&models.AnalyticsRollup{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Drain()

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	weekRepo := repository.NewWeekRepository(db)
	caseRepo := repository.NewCaseRepository(db, cfg.CaseLookupBatchSize)
	studentRepo := repository.NewStudentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	publisher := trigger.NewPublisher(natsConn, logger)
	consumer := trigger.NewConsumer(natsConn, logger)

	propagator := engine.NewPropagator(db, publisher, cfg.PropagationAttempts, logger)
	aggregator := engine.NewAggregator(submissionRepo, caseRepo, analyticsRepo, logger)

	submissionService := service.NewSubmissionService(submissionRepo, caseRepo, studentRepo, publisher, validate, logger)
	mediaService := service.NewMediaService(submissionRepo, uploader, publisher, cfg.UploadMaxSizeMB, logger)
	catalogService := service.NewCatalogService(weekRepo, caseRepo, publisher, validate, logger)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, redisClient, cfg.LeaderboardCacheTTL, logger)
	analyticsQueryService := service.NewAnalyticsQueryService(analyticsRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, studentRepo, redisClient, logger)
	seedService := service.NewSeedService(weekRepo, caseRepo, studentRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	consumerCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()

	// Each engine consumer subscribes under its own queue group so a
	// change event reaches every path exactly once per cluster.
	if err := consumer.SubscribeSubmissions(consumerCtx, "casecamp-scoring", propagator); err != nil {
		log.Fatalf("failed to subscribe scoring consumer: %v", err)
	}
	if err := consumer.SubscribeSubmissions(consumerCtx, "casecamp-analytics", aggregator); err != nil {
		log.Fatalf("failed to subscribe analytics consumer: %v", err)
	}
	if err := consumer.SubscribeSubmissions(consumerCtx, "casecamp-notifications", notificationService); err != nil {
		log.Fatalf("failed to subscribe notification consumer: %v", err)
	}
	if err := consumer.SubscribeWeeks(consumerCtx, "casecamp-notifications", notificationService); err != nil {
		log.Fatalf("failed to subscribe week consumer: %v", err)
	}

	notificationService.Start(consumerCtx)

	submissionHandler := handler.NewSubmissionHandler(submissionService, mediaService, logger)
	catalogHandler := handler.NewCatalogHandler(catalogService, logger)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsQueryService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, 30*time.Second)
	seedHandler := handler.NewSeedHandler(seedService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:   submissionHandler,
		CatalogHandler:      catalogHandler,
		LeaderboardHandler:  leaderboardHandler,
		AnalyticsHandler:    analyticsHandler,
		NotificationHandler: notificationHandler,
		SeedHandler:         seedHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopConsumers)
}

func waitForShutdown(app *fiber.App, stopConsumers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	stopConsumers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
