package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/vector"
	"github.com/laserostop/cm-backend/pkg/logger"
)

// Embedder is the slice of the embedding client the retriever needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Index is the slice of the vector store the retriever needs.
type Index interface {
	Query(ctx context.Context, collection string, embedding []float32, k int, filter map[string]string) ([]vector.Match, error)
}

// Snippet is one retrieved knowledge entry.
type Snippet struct {
	Text       string
	Source     string
	LangScript string
	Score      float32
}

const contextIntro = "Here are some relevant Tunisian social media examples and knowledge snippets:"

// Retriever performs best-effort similarity search over a fixed
// collection. It never fails the chat path: on any internal error it
// logs and returns nothing.
type Retriever struct {
	embedder   Embedder
	index      Index
	collection string
}

func NewRetriever(embedder Embedder, index Index, collection string) *Retriever {
	return &Retriever{
		embedder:   embedder,
		index:      index,
		collection: collection,
	}
}

// Retrieve returns up to k snippets, closest first. Score is the index
// distance, passed through verbatim.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter map[string]string) []Snippet {
	embedding, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		logger.Error("Query embedding failed, skipping retrieval", zap.Error(err))
		return nil
	}

	matches, err := r.index.Query(ctx, r.collection, embedding, k, filter)
	if err != nil {
		logger.Error("Vector query failed, skipping retrieval", zap.Error(err))
		return nil
	}

	snippets := make([]Snippet, 0, len(matches))
	for _, m := range matches {
		snippets = append(snippets, Snippet{
			Text:       m.Text,
			Source:     metadataValue(m.Metadata, "source"),
			LangScript: metadataValue(m.Metadata, "lang_script"),
			Score:      m.Distance,
		})
	}

	logger.Debug("Retrieved snippets",
		zap.Int("count", len(snippets)),
		zap.String("collection", r.collection),
	)

	return snippets
}

// BuildContext formats retrieval results into the context block injected
// as a system message. Returns "" when there is nothing to inject.
func (r *Retriever) BuildContext(ctx context.Context, query string, k int) string {
	snippets := r.Retrieve(ctx, query, k, nil)
	if len(snippets) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(contextIntro)
	for _, s := range snippets {
		b.WriteString(fmt.Sprintf("\n- %s (source: %s)", s.Text, s.Source))
	}

	return b.String()
}

func metadataValue(metadata map[string]string, key string) string {
	if v, ok := metadata[key]; ok {
		return v
	}
	return "unknown"
}
