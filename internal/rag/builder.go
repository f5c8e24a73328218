package rag

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/metrics"
	"github.com/laserostop/cm-backend/internal/vector"
	"github.com/laserostop/cm-backend/pkg/logger"
)

// ErrInvalidSchema marks bulk-load input whose header lacks required
// columns. Callers (the offline indexer) are expected to abort.
var ErrInvalidSchema = errors.New("invalid input schema")

// BulkEmbedder is the slice of the embedding client the builder needs.
type BulkEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Upserter is the slice of the vector store the builder needs.
type Upserter interface {
	Upsert(ctx context.Context, collection string, items []vector.Item) error
	Reset(collection string) error
	Count(collection string) (int, error)
}

type BuildStats struct {
	RowsRead        int
	RowsIndexed     int
	CollectionTotal int
}

type record struct {
	id         string
	text       string
	source     string
	langScript string
}

// Builder bulk-loads knowledge snippets into the vector index. A failed
// batch is logged and skipped; it does not abort the remaining batches.
type Builder struct {
	embedder BulkEmbedder
	index    Upserter
}

func NewBuilder(embedder BulkEmbedder, index Upserter) *Builder {
	return &Builder{embedder: embedder, index: index}
}

// BuildFromCSV indexes a CSV file with columns id,text,source,lang_script
// (any order). Rows with empty or whitespace-only text are dropped.
func (b *Builder) BuildFromCSV(ctx context.Context, path, collection string, batchSize int, reset bool) (*BuildStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	records, err := readRecords(f)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded input rows",
		zap.String("path", path),
		zap.Int("rows", len(records)),
	)

	return b.build(ctx, records, collection, batchSize, reset)
}

// BuildFromTexts indexes plain texts with generated ids, for tests and
// small datasets. metadatas may be nil.
func (b *Builder) BuildFromTexts(ctx context.Context, texts []string, metadatas []map[string]string, collection string, reset bool) (*BuildStats, error) {
	records := make([]record, 0, len(texts))
	for i, text := range texts {
		r := record{id: fmt.Sprintf("doc_%d", i), text: text, source: "manual"}
		if metadatas != nil && i < len(metadatas) {
			r.source = metadatas[i]["source"]
			r.langScript = metadatas[i]["lang_script"]
		}
		records = append(records, r)
	}

	return b.build(ctx, records, collection, len(records), reset)
}

func (b *Builder) build(ctx context.Context, records []record, collection string, batchSize int, reset bool) (*BuildStats, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	if reset {
		if err := b.index.Reset(collection); err != nil {
			return nil, fmt.Errorf("failed to reset collection: %w", err)
		}
	}

	valid := records[:0]
	for _, r := range records {
		if strings.TrimSpace(r.text) != "" {
			valid = append(valid, r)
		}
	}

	stats := &BuildStats{RowsRead: len(valid)}

	for start := 0; start < len(valid); start += batchSize {
		end := min(start+batchSize, len(valid))
		batch := valid[start:end]

		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = r.text
		}

		embeddings, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			logger.Error("Batch embedding failed, skipping batch",
				zap.Int("start", start),
				zap.Int("end", end),
				zap.Error(err),
			)
			continue
		}

		items := make([]vector.Item, len(batch))
		for i, r := range batch {
			items[i] = vector.Item{
				ID:        r.id,
				Embedding: embeddings[i],
				Text:      r.text,
				Metadata: map[string]string{
					"source":      r.source,
					"lang_script": r.langScript,
				},
			}
		}

		if err := b.index.Upsert(ctx, collection, items); err != nil {
			logger.Error("Batch upsert failed, skipping batch",
				zap.Int("start", start),
				zap.Int("end", end),
				zap.Error(err),
			)
			continue
		}

		stats.RowsIndexed += len(items)
		metrics.IndexedDocuments.Add(float64(len(items)))

		logger.Info("Indexed batch",
			zap.Int("start", start),
			zap.Int("end", end),
			zap.Int("total_indexed", stats.RowsIndexed),
		)
	}

	total, err := b.index.Count(collection)
	if err != nil {
		return nil, fmt.Errorf("failed to count collection: %w", err)
	}
	stats.CollectionTotal = total

	logger.Info("Index build complete",
		zap.String("collection", collection),
		zap.Int("rows_read", stats.RowsRead),
		zap.Int("rows_indexed", stats.RowsIndexed),
		zap.Int("collection_total", stats.CollectionTotal),
	)

	return stats, nil
}

func readRecords(r io.Reader) ([]record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}

	var missing []string
	for _, required := range []string{"id", "text", "source", "lang_script"} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrInvalidSchema, strings.Join(missing, ", "))
	}

	var records []record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		records = append(records, record{
			id:         field(row, cols["id"]),
			text:       field(row, cols["text"]),
			source:     field(row, cols["source"]),
			langScript: field(row, cols["lang_script"]),
		})
	}

	return records, nil
}

func field(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
