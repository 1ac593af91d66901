package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/scribesync/api/internal/client"
	"github.com/scribesync/api/internal/config"
	"github.com/scribesync/api/internal/handler"
	"github.com/scribesync/api/internal/middleware"
	"github.com/scribesync/api/internal/service"
	"github.com/scribesync/api/internal/store"
	"github.com/scribesync/api/internal/worker"
	ws "github.com/scribesync/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize Google clients (Gmail + Drive share one token)
	googleOpts, err := client.GoogleClientOptions(ctx, cfg.Google.Token)
	if err != nil {
		log.Fatalf("Failed to build Google credentials: %v", err)
	}
	gmailClient, err := client.NewGmailClient(ctx, cfg.Google.MailQuery, googleOpts...)
	if err != nil {
		log.Fatalf("Failed to initialize Gmail client: %v", err)
	}
	driveClient, err := client.NewDriveClient(ctx, googleOpts...)
	if err != nil {
		log.Fatalf("Failed to initialize Drive client: %v", err)
	}

	// Initialize object storage (optional - OCR dispatch disabled without it)
	var s3Client *client.S3Client
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		s3Client, err = client.NewS3Client(&cfg.Storage)
		if err != nil {
			log.Printf("Warning: object storage not initialized: %v", err)
		}
	} else {
		log.Println("Info: object storage not configured, OCR dispatch disabled")
	}

	ocrClient := client.NewOCRClient(&cfg.OCR)
	openaiClient := client.NewOpenAIClient(&cfg.OpenAI)

	// Initialize services
	library := service.NewLibrary(driveClient, cfg.Google.MainFolder, cfg.Google.OldFolder, cfg.Google.TempFolder)
	jobStore := store.New(driveClient, cfg.Google.MainFolder, cfg.Google.JobsFile)

	var objects client.ObjectStorage
	if s3Client != nil {
		objects = s3Client
	}
	var recognizer client.TextRecognizer
	if ocrClient.IsConfigured() {
		recognizer = ocrClient
	}
	ocrService := service.NewOCRService(jobStore, library, objects, recognizer, cfg.Storage.KeyPrefix, hub)
	intakeService := service.NewIntakeService(gmailClient, library, ocrService)

	var llm client.Distiller
	if openaiClient.IsConfigured() {
		llm = openaiClient
	}
	distillService := service.NewDistillService(library, llm, cfg.OpenAI.Prompt)

	// Initialize handlers
	intakeHandler := handler.NewIntakeHandler(intakeService)
	ocrHandler := handler.NewOCRHandler(ocrService, validate)
	distillHandler := handler.NewDistillHandler(distillService, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.SchedulerToken, cfg.Auth.JWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"storage":   s3Client != nil,
				"ocr":       ocrClient.IsConfigured(),
				"llm":       openaiClient.IsConfigured(),
				"scheduler": cfg.Scheduler.Enabled,
			},
		})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	intake := api.Group("/intake", rateLimiter.IntakeLimit(cfg.RateLimit.IntakePerHour))
	intake.Get("/run", intakeHandler.Run)

	ocr := api.Group("/ocr", rateLimiter.PollLimit(cfg.RateLimit.PollPerMin))
	ocr.Get("/poll", ocrHandler.Poll)

	api.Get("/jobs", rateLimiter.PollLimit(cfg.RateLimit.PollPerMin), ocrHandler.Jobs)

	distill := api.Group("/distill", rateLimiter.DistillLimit(cfg.RateLimit.DistillPerMin))
	distill.Get("/queue", distillHandler.Queue)
	distill.Get("/process", distillHandler.Process)
	distill.Get("/save", distillHandler.Save)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Built-in scheduler (optional; an external cron hitting the API works too)
	if cfg.Scheduler.Enabled {
		go startWorkerServer(cfg, redisClient, intakeService, ocrService, distillService)
		go startTickScheduler(cfg)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	redisClient *redis.Client,
	intakeService *service.IntakeService,
	ocrService *service.OCRService,
	distillService *service.DistillService,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One tick at a time; the lease inside the worker guards restarts
			Concurrency: 1,
			LogLevel:    asynqLogLevel,
		},
	)

	pipelineWorker := worker.NewPipelineWorker(intakeService, ocrService, distillService, redisClient, cfg.Scheduler.Interval)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypePipelineTick, pipelineWorker.ProcessTick)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func startTickScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		nil,
	)

	spec := fmt.Sprintf("@every %s", cfg.Scheduler.Interval)
	if _, err := scheduler.Register(spec, asynq.NewTask(worker.TaskTypePipelineTick, nil)); err != nil {
		log.Printf("Failed to register pipeline tick: %v", err)
		return
	}

	log.Printf("Pipeline scheduler running every %s", cfg.Scheduler.Interval)
	if err := scheduler.Run(); err != nil {
		log.Printf("Asynq scheduler error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
