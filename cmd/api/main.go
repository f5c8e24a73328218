package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/api/handlers"
	"github.com/laserostop/cm-backend/internal/asr"
	"github.com/laserostop/cm-backend/internal/chat"
	"github.com/laserostop/cm-backend/internal/embedding"
	"github.com/laserostop/cm-backend/internal/llm"
	"github.com/laserostop/cm-backend/internal/metrics"
	"github.com/laserostop/cm-backend/internal/middleware/ratelimit"
	"github.com/laserostop/cm-backend/internal/rag"
	"github.com/laserostop/cm-backend/internal/storage/sqlite"
	"github.com/laserostop/cm-backend/internal/vector"
	"github.com/laserostop/cm-backend/pkg/config"
	appLogger "github.com/laserostop/cm-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting LaserOstop community manager API")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	embedder := embedding.NewClient(cfg.LLM.APIKey, cfg.LLM.EmbeddingModel)

	store, err := vector.NewStore(cfg.Vector.Dir, embedder.EmbeddingFunc())
	if err != nil {
		appLogger.Fatal("Failed to open vector store", zap.Error(err))
	}

	retriever := rag.NewRetriever(embedder, store, cfg.Vector.Collection)

	llmClient := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.TimeoutSec, cfg.LLM.MaxRetries)
	transcriber := asr.NewTranscriber(cfg.LLM.APIKey, cfg.LLM.ASRModel)

	chatService := chat.NewService(retriever, llmClient, sqliteClient, chat.Options{
		DefaultModel:       cfg.LLM.ChatModel,
		RAGVersion:         cfg.Vector.RAGVersion,
		RetrievalK:         cfg.Vector.RetrievalK,
		DefaultTemperature: cfg.LLM.Temperature,
		HistoryTurns:       cfg.Eval.HistoryTurns,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.MaxRequestsPerMinute,
	})
	defer limiter.Stop()

	chatHandler := handlers.NewChatHandler(chatService, cfg.Vector.RAGVersion)
	transcribeHandler := handlers.NewTranscribeHandler(transcriber)
	webhookHandler := handlers.NewWebhookHandler(chatService, cfg.Server.WebhookVerifyToken)
	statsHandler := handlers.NewStatsHandler(sqliteClient, &collectionCounter{store: store, collection: cfg.Vector.Collection})

	api := app.Group("/api/v1")

	api.Post("/chat", limiter.Middleware(), chatHandler.HandleChat)
	api.Post("/transcribe", limiter.Middleware(), transcribeHandler.HandleTranscribe)

	api.Get("/webhooks/whatsapp", webhookHandler.HandleVerification)
	api.Post("/webhooks/whatsapp", webhookHandler.HandleWhatsApp)
	api.Get("/webhooks/meta", webhookHandler.HandleVerification)
	api.Post("/webhooks/meta", webhookHandler.HandleMeta)
	api.Post("/webhooks/tiktok", webhookHandler.HandleTikTok)

	api.Get("/stats", statsHandler.HandleStats)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

// collectionCounter pins the stats endpoint to the configured collection.
type collectionCounter struct {
	store      *vector.Store
	collection string
}

func (c *collectionCounter) Count() int {
	n, err := c.store.Count(c.collection)
	if err != nil {
		appLogger.Error("Failed to count vector collection", zap.Error(err))
		return 0
	}
	return n
}
