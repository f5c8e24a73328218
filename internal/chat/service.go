package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/llm"
	"github.com/laserostop/cm-backend/internal/metrics"
	"github.com/laserostop/cm-backend/internal/storage/models"
	"github.com/laserostop/cm-backend/pkg/logger"
)

// Retriever supplies the formatted RAG context block ("" = omit).
type Retriever interface {
	BuildContext(ctx context.Context, query string, k int) string
}

// Completer invokes the LLM completion service.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, model string, temperature float32, maxTokens int) (string, error)
}

// Store persists interactions and serves conversation history.
type Store interface {
	InsertInteraction(interaction *models.Interaction) error
	RecentInteractions(userID, channel string, limit int) ([]models.Interaction, error)
}

// Options are the per-deployment defaults of the orchestrator.
type Options struct {
	DefaultModel       string
	RAGVersion         string
	RetrievalK         int
	DefaultTemperature float32
	HistoryTurns       int
}

// Request is one chat turn. Zero-valued Model, RAGVersion and
// Temperature fall back to the service defaults.
type Request struct {
	UserText     string
	Channel      string
	UserID       string
	UseRAG       bool
	RAGVersion   string
	ModelVersion string
	Temperature  float32
	History      []llm.Message
}

// Service orchestrates a chat turn: system prompt, optional RAG context,
// optional history, completion, derived flags, persistence.
type Service struct {
	retriever Retriever
	completer Completer
	store     Store
	opts      Options
}

func NewService(retriever Retriever, completer Completer, store Store, opts Options) *Service {
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = 5
	}
	if opts.DefaultTemperature == 0 {
		opts.DefaultTemperature = 0.7
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 3
	}

	return &Service{
		retriever: retriever,
		completer: completer,
		store:     store,
		opts:      opts,
	}
}

// Respond runs the full turn and propagates any failure. The evaluation
// harness uses it directly so per-example failures stay observable;
// user-facing callers go through ChatWithUser.
func (s *Service) Respond(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	model := req.ModelVersion
	if model == "" {
		model = s.opts.DefaultModel
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = s.opts.DefaultTemperature
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}

	if req.UseRAG {
		contextBlock := s.retriever.BuildContext(ctx, req.UserText, s.opts.RetrievalK)
		if contextBlock != "" {
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: contextBlock})
			metrics.RetrievalContexts.WithLabelValues("hit").Inc()
			logger.Debug("Added RAG context", zap.Int("context_chars", len(contextBlock)))
		} else {
			metrics.RetrievalContexts.WithLabelValues("empty").Inc()
		}
	}

	messages = append(messages, req.History...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.UserText})

	logger.Info("Processing chat turn",
		zap.String("channel", req.Channel),
		zap.String("user_id", req.UserID),
		zap.String("model", model),
		zap.Bool("use_rag", req.UseRAG),
	)

	assistantText, err := s.completer.Complete(ctx, messages, model, temperature, 0)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	if err := s.persistInteraction(req, model, assistantText); err != nil {
		return "", err
	}

	metrics.ChatTurns.WithLabelValues(req.Channel).Inc()
	metrics.ChatDuration.Observe(time.Since(start).Seconds())

	return assistantText, nil
}

// ChatWithUser is the user-facing entry point. Any internal failure is
// logged and converted into the fixed fallback apology; no error ever
// reaches the end user. Failed turns are not persisted.
func (s *Service) ChatWithUser(ctx context.Context, req Request) string {
	reply, err := s.Respond(ctx, req)
	if err != nil {
		logger.Error("Chat turn failed, returning fallback",
			zap.String("channel", req.Channel),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		metrics.ChatFallbacks.Inc()
		return FallbackReply
	}
	return reply
}

// ChatWithHistory prepends the user's recent turns before responding.
func (s *Service) ChatWithHistory(ctx context.Context, req Request) string {
	history, err := s.ConversationHistory(ctx, req.UserID, req.Channel, s.opts.HistoryTurns)
	if err != nil {
		logger.Error("Failed to load conversation history", zap.Error(err))
		history = nil
	}

	req.History = history
	return s.ChatWithUser(ctx, req)
}

// ConversationHistory expands the last limit turns for a user+channel
// into chronological user/assistant message pairs.
func (s *Service) ConversationHistory(ctx context.Context, userID, channel string, limit int) ([]llm.Message, error) {
	interactions, err := s.store.RecentInteractions(userID, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}

	history := make([]llm.Message, 0, 2*len(interactions))
	for i := len(interactions) - 1; i >= 0; i-- {
		history = append(history,
			llm.Message{Role: llm.RoleUser, Content: interactions[i].UserText},
			llm.Message{Role: llm.RoleAssistant, Content: interactions[i].AssistantText},
		)
	}

	return history, nil
}

func (s *Service) persistInteraction(req Request, model, assistantText string) error {
	interaction := &models.Interaction{
		ID:            uuid.New().String(),
		Channel:       req.Channel,
		UserText:      req.UserText,
		AssistantText: assistantText,
		CreatedAt:     time.Now().UTC(),
		ModelVersion:  model,
		RAGUsed:       req.UseRAG,
	}

	if req.UserID != "" {
		interaction.UserID = &req.UserID
	}
	if req.UseRAG {
		ragVersion := req.RAGVersion
		if ragVersion == "" {
			ragVersion = s.opts.RAGVersion
		}
		interaction.RAGVersion = &ragVersion
	}
	if flags := DeriveFlags(assistantText); len(flags) > 0 {
		joined := strings.Join(flags, ",")
		interaction.Flags = &joined
	}

	if err := s.store.InsertInteraction(interaction); err != nil {
		return fmt.Errorf("failed to persist interaction: %w", err)
	}

	return nil
}
