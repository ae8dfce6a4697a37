package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jantenpas/llm-eval-studio/internal/config"
	"github.com/jantenpas/llm-eval-studio/internal/database"
	"github.com/jantenpas/llm-eval-studio/internal/eval"
	"github.com/jantenpas/llm-eval-studio/internal/handler"
	"github.com/jantenpas/llm-eval-studio/internal/middleware"
	"github.com/jantenpas/llm-eval-studio/internal/models"
	"github.com/jantenpas/llm-eval-studio/internal/repository"
	"github.com/jantenpas/llm-eval-studio/internal/router"
	"github.com/jantenpas/llm-eval-studio/internal/service"
	"github.com/jantenpas/llm-eval-studio/internal/worker"
	"github.com/jantenpas/llm-eval-studio/pkg/llm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Run{}, &models.Result{}); err != nil {
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
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	invoker, err := llm.NewInvoker(llm.ProviderConfig{
		Provider:  cfg.LLMProvider,
		APIKey:    providerAPIKey(cfg),
		Model:     cfg.LLMModel,
		MaxTokens: cfg.MaxOutputTokens,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	runRepo := repository.NewRunRepository(db)
	resultRepo := repository.NewResultRepository(db)

	pipeline := eval.NewPipeline(invoker, eval.Config{
		Model:      cfg.LLMModel,
		ResultsDir: cfg.ResultsDir,
	}, logger, nil)

	pool := worker.NewPool(cfg.EvalWorkers, cfg.EvalQueueSize, logger)
	eventsService := service.NewRunEventsService(redisClient, natsConn, cfg.EventSubject, logger)
	runService := service.NewRunService(runRepo, resultRepo, pipeline, pool, eventsService, redisClient, cfg.RunCacheTTL, validate, logger)
	pool.Start(runService)

	runHandler := handler.NewRunHandler(runService, validate, logger)
	runEventsHandler := handler.NewRunEventsHandler(eventsService, logger, cfg.EventKeepAlive)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RunHandler:       runHandler,
		RunEventsHandler: runEventsHandler,
	})

	eventsCtx, stopEvents := context.WithCancel(context.Background())
	eventsService.Start(eventsCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, pool, stopEvents)
}

func providerAPIKey(cfg config.Config) string {
	if strings.ToLower(cfg.LLMProvider) == llm.ProviderOpenAI {
		return cfg.OpenAIAPIKey
	}
	return cfg.AnthropicAPIKey
}

// waitForShutdown stops the HTTP server first, then drains the worker pool
// so queued runs finish before the process exits.
func waitForShutdown(app *fiber.App, pool *worker.Pool, stopEvents context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	pool.Stop()
	stopEvents()

	log.Println("server stopped")
}
