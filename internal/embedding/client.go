package embedding

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/pkg/logger"
)

// Client turns text into fixed-dimension vectors using the configured
// multilingual embedding model. It is constructed once in the composition
// root and is safe for concurrent use.
//
// Embedding failures are configuration/environment errors and propagate
// without retry.
type Client struct {
	api   *openai.Client
	model string
}

func NewClient(apiKey, model string) *Client {
	logger.Info("Embedding client initialized", zap.String("model", model))

	return &Client{
		api:   openai.NewClient(apiKey),
		model: model,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Embed vectorizes an arbitrary batch of texts in one request.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		copy(vec, data.Embedding)
		embeddings[i] = vec
	}

	return embeddings, nil
}

// EmbedOne vectorizes a single query string.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbeddingFunc bridges the client into chromem-go's embedding API, for
// the rare store paths that embed on their own (chromem normalizes
// vectors itself).
func (c *Client) EmbeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return c.EmbedOne(ctx, text)
	}
}
