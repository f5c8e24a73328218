package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/chat"
	"github.com/laserostop/cm-backend/internal/embedding"
	"github.com/laserostop/cm-backend/internal/evaluation"
	"github.com/laserostop/cm-backend/internal/llm"
	"github.com/laserostop/cm-backend/internal/metrics"
	"github.com/laserostop/cm-backend/internal/rag"
	"github.com/laserostop/cm-backend/internal/storage/sqlite"
	"github.com/laserostop/cm-backend/internal/vector"
	"github.com/laserostop/cm-backend/pkg/config"
	appLogger "github.com/laserostop/cm-backend/pkg/logger"
)

// Offline evaluation runner: replays the gold examples through the full
// chat pipeline and prints the scored summary.
func main() {
	model := flag.String("model", "", "chat model to evaluate (default from config)")
	ragVersion := flag.String("rag-version", "", "rag version label for the run (default from config)")
	noRAG := flag.Bool("no-rag", false, "evaluate without retrieval (baseline run)")
	limit := flag.Int("limit", 0, "max examples to evaluate (0 = all)")
	category := flag.String("category", "", "only evaluate examples of this category")
	notes := flag.String("notes", "", "free-form notes stored with the run")
	jsonOut := flag.Bool("json-out", false, "print the summary as JSON")
	flag.Parse()

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

	metrics.Init()

	if *model == "" {
		*model = cfg.LLM.ChatModel
	}
	if *ragVersion == "" {
		*ragVersion = cfg.Vector.RAGVersion
	}

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

	chatService := chat.NewService(retriever, llmClient, sqliteClient, chat.Options{
		DefaultModel:       cfg.LLM.ChatModel,
		RAGVersion:         cfg.Vector.RAGVersion,
		RetrievalK:         cfg.Vector.RetrievalK,
		DefaultTemperature: cfg.LLM.Temperature,
		HistoryTurns:       cfg.Eval.HistoryTurns,
	})

	evaluator := evaluation.NewEvaluator(chatService, sqliteClient, cfg.Eval.QualityThreshold)

	summary, err := evaluator.Run(context.Background(), evaluation.Options{
		ModelVersion: *model,
		RAGVersion:   *ragVersion,
		UseRAG:       !*noRAG,
		Limit:        *limit,
		Category:     *category,
		Notes:        *notes,
	})
	if err != nil {
		appLogger.Fatal("Eval run failed", zap.Error(err))
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			appLogger.Fatal("Failed to encode summary", zap.Error(err))
		}
		return
	}

	printSummary(summary)
}

func printSummary(s *evaluation.Summary) {
	fmt.Printf("Eval run %s\n", s.RunID)
	fmt.Printf("  model:        %s\n", s.ModelVersion)
	fmt.Printf("  rag version:  %s\n", s.RAGVersion)
	fmt.Printf("  examples:     %d\n", s.NumExamples)
	if s.AccuracyScore != nil {
		fmt.Printf("  accuracy:     %.3f\n", *s.AccuracyScore)
	} else {
		fmt.Printf("  accuracy:     n/a (no labeled examples)\n")
	}
	fmt.Printf("  safety:       %.3f\n", s.SafetyScore)
	fmt.Printf("  cta presence: %.3f\n", s.CTAPresenceRate)

	if len(s.ErrorBreakdown) > 0 {
		fmt.Println("  errors:")
		for errorType, count := range s.ErrorBreakdown {
			fmt.Printf("    %-22s %d\n", errorType, count)
		}
	}
}
