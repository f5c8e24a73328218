package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/embedding"
	"github.com/laserostop/cm-backend/internal/metrics"
	"github.com/laserostop/cm-backend/internal/rag"
	"github.com/laserostop/cm-backend/internal/vector"
	"github.com/laserostop/cm-backend/pkg/config"
	appLogger "github.com/laserostop/cm-backend/pkg/logger"
)

// Offline index builder: loads a CSV of curated Tunisian messages and
// knowledge snippets into the persistent vector store.
func main() {
	input := flag.String("input", "", "path to the CSV input file (columns: id,text,source,lang_script)")
	reset := flag.Bool("reset", false, "delete the collection before indexing")
	batchSize := flag.Int("batch-size", 0, "embedding batch size (default from config)")
	collection := flag.String("collection", "", "collection name (default from config)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --input")
		flag.Usage()
		os.Exit(1)
	}

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

	if *batchSize <= 0 {
		*batchSize = cfg.Vector.BatchSize
	}
	if *collection == "" {
		*collection = cfg.Vector.Collection
	}

	embedder := embedding.NewClient(cfg.LLM.APIKey, cfg.LLM.EmbeddingModel)

	store, err := vector.NewStore(cfg.Vector.Dir, embedder.EmbeddingFunc())
	if err != nil {
		appLogger.Fatal("Failed to open vector store", zap.Error(err))
	}

	builder := rag.NewBuilder(embedder, store)

	stats, err := builder.BuildFromCSV(context.Background(), *input, *collection, *batchSize, *reset)
	if err != nil {
		appLogger.Fatal("Index build failed", zap.Error(err))
	}

	fmt.Printf("Indexed %d/%d rows into %s (collection total: %d)\n",
		stats.RowsIndexed, stats.RowsRead, *collection, stats.CollectionTotal)
}
