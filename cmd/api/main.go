package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/config"
	"github.com/noah-isme/gema-assessment-api/internal/database"
	"github.com/noah-isme/gema-assessment-api/internal/grading"
	"github.com/noah-isme/gema-assessment-api/internal/handler"
	"github.com/noah-isme/gema-assessment-api/internal/jobs"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/internal/router"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
	"github.com/noah-isme/gema-assessment-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, cfg.DatabasePool)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to access database handle: %v", err)
	}
	defer sqlDB.Close()

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	redisClient, err := database.ConnectRedis(rootCtx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	validate := utils.NewValidator()

	submissionRepo := repository.NewSubmissionRepository(db)
	childRepo := repository.NewChildRepository(db)

	taskService := service.NewTaskService(repository.NewAdminTaskRepository(db), logger)
	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), redisClient, "gema", validate, logger)
	reportService := service.NewReportService(submissionRepo, childRepo, redisClient, cfg.ReportCacheTTL, logger)

	dispatcher := jobs.NewDispatcher(logger)
	service.RegisterJobHandlers(dispatcher, reportService, notificationService)

	var queue jobs.Enqueuer = jobs.NewInlineQueue(dispatcher)
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()

		worker := jobs.NewWorker(natsConn, cfg.JobsSubjectPrefix, dispatcher, logger)
		if err := worker.Start(rootCtx); err != nil {
			log.Fatalf("failed to start job worker: %v", err)
		}
		queue = jobs.NewNATSQueue(natsConn, cfg.JobsSubjectPrefix)
	} else {
		logger.Warn().Msg("nats url not configured, running jobs inline")
	}

	var advisor ai.EssayAdvisor
	if cfg.AIAdvisory && cfg.AIProvider == "openai" && cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAIAdvisor(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create essay advisor: %v", err)
		}
		advisor = openAI
	}

	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Assessments: repository.NewAssessmentRepository(db),
		Submissions: submissionRepo,
		Children:    childRepo,
		Registry:    grading.NewRegistry(grading.WithFuzzyEditDistance(cfg.FuzzyEditDistance)),
		Queue:       queue,
		Tasks:       taskService,
		Advisor:     advisor,
		Validator:   validate,
	}, logger)
	manualGradingService := service.NewManualGradingService(submissionRepo, taskService, queue, activityService, validate, logger)
	flagService := service.NewGradingFlagService(repository.NewGradingFlagRepository(db), submissionRepo, childRepo, manualGradingService, taskService, activityService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:    handler.NewSubmissionHandler(submissionService, reportService, logger),
		AdminGradingHandler:  handler.NewAdminGradingHandler(manualGradingService, logger),
		GradingFlagHandler:   handler.NewGradingFlagHandler(flagService, logger),
		AdminTaskHandler:     handler.NewAdminTaskHandler(taskService, logger),
		AdminActivityHandler: handler.NewAdminActivityHandler(activityService, logger),
		NotificationHandler:  handler.NewNotificationHandler(notificationService, logger),
		HealthChecks: []handler.DependencyCheck{
			{Name: "database", Check: sqlDB.PingContext},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelRoot)
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	stopWorkers()

	log.Println("server stopped")
}
