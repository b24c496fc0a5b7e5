// @title Test Solver API
// @version 1.0
// @description Uploads scanned tests, extracts their questions, and answers them with an LLM over retrieved context.
// @host localhost:8080
// @BasePath /api
// @schemes http
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"test-solver/database"
	"test-solver/internal/adapter"
	"test-solver/internal/adapter/embedding"
	"test-solver/internal/adapter/extraction"
	"test-solver/internal/adapter/generation"
	"test-solver/internal/adapter/ocr"
	"test-solver/internal/adapter/storage"
	"test-solver/internal/adapter/websearch"
	"test-solver/internal/cache"
	"test-solver/internal/config"
	"test-solver/internal/domain"
	"test-solver/internal/handler"
	"test-solver/internal/logger"
	"test-solver/internal/middleware"
	"test-solver/internal/repository"
	"test-solver/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// requestLogger is a middleware that logs HTTP requests
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.IP()),
		)

		return err
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	ctx := context.Background()

	// Database
	db, err := database.NewSQLXPostgresDB(cfg.GetDSN())
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Successfully connected to PostgreSQL")

	// Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	cacheAdapter := adapter.NewRedisCacheAdapter(redisClient)
	appLogger.Info("Successfully connected to Redis")

	// Embedding service
	var embeddingService domain.EmbeddingService
	switch cfg.Embedding.Source {
	case "ollama":
		appLogger.Info("Initializing Ollama Embedding Service",
			zap.String("server_url", cfg.Embedding.Ollama.ServerURL),
			zap.String("model", cfg.Embedding.Ollama.Model))
		embeddingService, err = embedding.NewOllamaEmbeddingService(cfg.Embedding.Ollama.ServerURL, cfg.Embedding.Ollama.Model)
		if err != nil {
			appLogger.Fatal("Failed to create Ollama Embedding Service", zap.Error(err))
		}
	case "openai":
		appLogger.Info("Initializing OpenAI Embedding Service", zap.String("model", cfg.Embedding.OpenAI.Model))
		embeddingService, err = embedding.NewOpenAIEmbeddingService(cfg.Embedding.OpenAI.APIKey, cfg.Embedding.OpenAI.Model, cacheAdapter, cfg.Embedding)
		if err != nil {
			appLogger.Fatal("Failed to create OpenAI Embedding Service", zap.Error(err))
		}
	default:
		appLogger.Fatal(fmt.Sprintf("Unsupported embedding source: %s. Please check embedding.source in config.", cfg.Embedding.Source))
	}

	// Chat LLM for extraction and answer generation
	llm, err := adapter.NewChatLLM(cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	// Vision OCR
	textExtractor, err := ocr.NewGeminiTextExtractor(ctx, cfg.Processing)
	if err != nil {
		appLogger.Fatal("Failed to create Gemini text extractor", zap.Error(err))
	}

	// Web search is optional: without credentials the retriever runs on
	// the knowledge base alone.
	var webSearcher domain.WebSearcher
	if cfg.Search.APIKey != "" && cfg.Search.EngineID != "" {
		webSearcher, err = websearch.NewGoogleSearcher(ctx, cfg.Search)
		if err != nil {
			appLogger.Fatal("Failed to create Google searcher", zap.Error(err))
		}
		appLogger.Info("Google Custom Search initialized")
	} else {
		appLogger.Warn("Web search disabled: no search credentials configured")
	}

	// File storage
	fileStorage, err := storage.NewLocalFileStorage(cfg.Storage)
	if err != nil {
		appLogger.Fatal("Failed to initialize file storage", zap.Error(err))
	}

	// Repositories
	testRepository := repository.NewTestDatabaseAdapter(db)
	knowledgeRepository := repository.NewKnowledgeDatabaseAdapter(db)

	// Services
	contextRetriever := service.NewContextRetriever(knowledgeRepository, embeddingService, webSearcher,
		cfg.Embedding, cfg.Search, cfg.Processing)
	answerGenerator := generation.NewLLMAnswerGenerator(llm)
	questionExtractor := extraction.NewLLMQuestionExtractor(llm)

	processingService := service.NewProcessingService(testRepository, fileStorage, textExtractor,
		questionExtractor, contextRetriever, answerGenerator, cfg.Processing)
	testService := service.NewTestService(testRepository, fileStorage, processingService)

	testHandler := handler.NewTestHandler(testService, processingService)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(requestLogger())
	app.Use(middleware.Metrics())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
		MaxAge:       300,
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unreachable")
		}
		if err := cacheAdapter.Ping(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "cache unreachable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", middleware.MetricsHandler())

	// Uploaded files are served back under their public URLs.
	app.Static("/files", cfg.Storage.BaseDir)

	apiGroup := app.Group("/api")
	testsGroup := apiGroup.Group("/tests")
	testsGroup.Post("/upload", testHandler.UploadTest)
	testsGroup.Get("/", testHandler.ListTests)
	testsGroup.Get("/:id", testHandler.GetTest)
	testsGroup.Get("/:id/status", testHandler.GetTestStatus)
	testsGroup.Post("/:id/cancel", testHandler.CancelTest)
	testsGroup.Delete("/:id", testHandler.DeleteTest)

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", os.Getenv("ENV")))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
