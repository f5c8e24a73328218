package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/pkg/logger"
	"github.com/laserostop/cm-backend/pkg/retry"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a completion request.
type Message struct {
	Role    string
	Content string
}

// Client invokes the chat completion API with model-family-specific
// parameter adaptation, a request timeout and bounded retries. Terminal
// errors propagate; fallback behavior belongs to the orchestrator.
type Client struct {
	api         *openai.Client
	timeout     time.Duration
	retryConfig retry.Config
}

func NewClient(apiKey string, timeoutSec, maxRetries int) *Client {
	retryConfig := retry.DefaultConfig()
	retryConfig.MaxAttempts = maxRetries
	retryConfig.Logger = logger.GetLogger()

	logger.Info("LLM client initialized",
		zap.Int("timeout_sec", timeoutSec),
		zap.Int("max_retries", maxRetries),
	)

	return &Client{
		api:         openai.NewClient(apiKey),
		timeout:     time.Duration(timeoutSec) * time.Second,
		retryConfig: retryConfig,
	}
}

// Complete returns the assistant text for the assembled message list.
// maxTokens <= 0 means no output cap.
func (c *Client) Complete(ctx context.Context, messages []Message, model string, temperature float32, maxTokens int) (string, error) {
	req := buildRequest(messages, model, temperature, maxTokens)

	// Each attempt gets its own deadline so a timed-out request can
	// still be retried.
	reply, err := retry.DoWithResult(ctx, c.retryConfig, func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(attemptCtx, req)
		if err != nil {
			return "", fmt.Errorf("failed to create completion: %w", err)
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("completion returned no choices")
		}

		logger.Debug("Completion generated",
			zap.String("model", model),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}

	return reply, nil
}

func buildRequest(messages []Message, model string, temperature float32, maxTokens int) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toAPIMessages(messages),
	}

	profile := profileFor(model)

	if profile.supportsTemperature {
		req.Temperature = temperature
	}

	if maxTokens > 0 {
		if profile.usesCompletionTokens {
			req.MaxCompletionTokens = maxTokens
		} else {
			req.MaxTokens = maxTokens
		}
	}

	return req
}

func toAPIMessages(messages []Message) []openai.ChatCompletionMessage {
	apiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		apiMessages[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return apiMessages
}
