package vector

import (
	"context"
	"fmt"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/pkg/logger"
)

// Item is one knowledge snippet to index.
type Item struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  map[string]string
}

// Match is a query hit. Distance is 1 - cosine similarity, so lower
// means more similar; results are ordered ascending.
type Match struct {
	Text     string
	Metadata map[string]string
	Distance float32
}

// Store is an embedded, on-disk vector index with named collections.
// It persists under a configured directory and survives restarts.
// Safe for concurrent reads once constructed.
type Store struct {
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc
}

func NewStore(dir string, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store at %s: %w", dir, err)
	}

	logger.Info("Vector store initialized", zap.String("dir", dir))

	return &Store{db: db, embedFunc: embedFunc}, nil
}

// NewEphemeralStore returns an in-memory store for tests.
func NewEphemeralStore(embedFunc chromem.EmbeddingFunc) *Store {
	return &Store{db: chromem.NewDB(), embedFunc: embedFunc}
}

func (s *Store) collection(name string) (*chromem.Collection, error) {
	col, err := s.db.GetOrCreateCollection(name, nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	return col, nil
}

// Upsert indexes items into the named collection. chromem keys documents
// by id, so re-adding an existing id overwrites it.
func (s *Store) Upsert(ctx context.Context, collection string, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, chromem.Document{
			ID:        item.ID,
			Metadata:  item.Metadata,
			Embedding: item.Embedding,
			Content:   item.Text,
		})
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents to %s: %w", collection, err)
	}

	return nil
}

// Query returns up to k nearest neighbors, ascending by distance. An
// empty collection yields an empty result, never an error. k is clamped
// to the collection size because chromem rejects oversized nResults.
func (s *Store) Query(ctx context.Context, collection string, embedding []float32, k int, filter map[string]string) ([]Match, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, k, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		matches = append(matches, Match{
			Text:     res.Content,
			Metadata: res.Metadata,
			Distance: 1 - res.Similarity,
		})
	}

	return matches, nil
}

// Reset deletes every item in the named collection and recreates it
// empty. Used for full reindexing.
func (s *Store) Reset(collection string) error {
	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}

	if _, err := s.collection(collection); err != nil {
		return err
	}

	logger.Info("Collection reset", zap.String("collection", collection))
	return nil
}

func (s *Store) Count(collection string) (int, error) {
	col, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}
