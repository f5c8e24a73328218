package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laserostop/cm-backend/internal/llm"
	"github.com/laserostop/cm-backend/internal/storage/models"
)

type stubRetriever struct {
	contextBlock string
	queries      []string
}

func (s *stubRetriever) BuildContext(_ context.Context, query string, _ int) string {
	s.queries = append(s.queries, query)
	return s.contextBlock
}

type stubCompleter struct {
	reply    string
	err      error
	messages []llm.Message
	model    string
}

func (s *stubCompleter) Complete(_ context.Context, messages []llm.Message, model string, _ float32, _ int) (string, error) {
	s.messages = messages
	s.model = model
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubInteractionStore struct {
	inserted  []*models.Interaction
	insertErr error
	recent    []models.Interaction
	recentErr error
}

func (s *stubInteractionStore) InsertInteraction(interaction *models.Interaction) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, interaction)
	return nil
}

func (s *stubInteractionStore) RecentInteractions(string, string, int) ([]models.Interaction, error) {
	return s.recent, s.recentErr
}

func newTestService(retriever *stubRetriever, completer *stubCompleter, store *stubInteractionStore) *Service {
	return NewService(retriever, completer, store, Options{
		DefaultModel: "gpt-4o-mini",
		RAGVersion:   "rag_v1",
	})
}

func TestRespond(t *testing.T) {
	t.Parallel()

	t.Run("answers without retrieval when rag is off", func(t *testing.T) {
		t.Parallel()

		retriever := &stubRetriever{contextBlock: "should not appear"}
		completer := &stubCompleter{reply: "Les séances c'est 500 DT."}
		store := &stubInteractionStore{}
		service := newTestService(retriever, completer, store)

		reply, err := service.Respond(context.Background(), Request{
			UserText: "Chhal thot les séances?",
			Channel:  models.ChannelTest,
			UserID:   "user-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "Les séances c'est 500 DT.", reply)

		// No retrieval call, and only system + user messages sent.
		assert.Empty(t, retriever.queries)
		require.Len(t, completer.messages, 2)
		assert.Equal(t, llm.RoleSystem, completer.messages[0].Role)
		assert.Equal(t, llm.RoleUser, completer.messages[1].Role)
		assert.Equal(t, "Chhal thot les séances?", completer.messages[1].Content)

		require.Len(t, store.inserted, 1)
		logged := store.inserted[0]
		assert.False(t, logged.RAGUsed)
		assert.Nil(t, logged.RAGVersion)
		assert.Equal(t, "gpt-4o-mini", logged.ModelVersion)
		require.NotNil(t, logged.UserID)
		assert.Equal(t, "user-1", *logged.UserID)
	})

	t.Run("injects context as second system message", func(t *testing.T) {
		t.Parallel()

		retriever := &stubRetriever{contextBlock: "Here are some relevant snippets:\n- exemple"}
		completer := &stubCompleter{reply: "réponse"}
		store := &stubInteractionStore{}
		service := newTestService(retriever, completer, store)

		_, err := service.Respond(context.Background(), Request{
			UserText: "Kifech ykhadem le laser?",
			Channel:  models.ChannelWhatsApp,
			UseRAG:   true,
		})
		require.NoError(t, err)

		require.Len(t, completer.messages, 3)
		assert.Equal(t, llm.RoleSystem, completer.messages[1].Role)
		assert.Equal(t, retriever.contextBlock, completer.messages[1].Content)

		require.Len(t, store.inserted, 1)
		assert.True(t, store.inserted[0].RAGUsed)
		require.NotNil(t, store.inserted[0].RAGVersion)
		assert.Equal(t, "rag_v1", *store.inserted[0].RAGVersion)
	})

	t.Run("empty context block is not injected", func(t *testing.T) {
		t.Parallel()

		retriever := &stubRetriever{contextBlock: ""}
		completer := &stubCompleter{reply: "réponse"}
		service := newTestService(retriever, completer, &stubInteractionStore{})

		_, err := service.Respond(context.Background(), Request{
			UserText: "question",
			Channel:  models.ChannelTest,
			UseRAG:   true,
		})
		require.NoError(t, err)
		require.Len(t, completer.messages, 2)
	})

	t.Run("request rag version overrides the default", func(t *testing.T) {
		t.Parallel()

		retriever := &stubRetriever{contextBlock: "ctx"}
		store := &stubInteractionStore{}
		service := newTestService(retriever, &stubCompleter{reply: "ok"}, store)

		_, err := service.Respond(context.Background(), Request{
			UserText:   "question",
			Channel:    models.ChannelEval,
			UseRAG:     true,
			RAGVersion: "rag_v2",
		})
		require.NoError(t, err)
		require.Len(t, store.inserted, 1)
		require.NotNil(t, store.inserted[0].RAGVersion)
		assert.Equal(t, "rag_v2", *store.inserted[0].RAGVersion)
	})

	t.Run("completion failure propagates and is not persisted", func(t *testing.T) {
		t.Parallel()

		completer := &stubCompleter{err: errors.New("rate limited")}
		store := &stubInteractionStore{}
		service := newTestService(&stubRetriever{}, completer, store)

		_, err := service.Respond(context.Background(), Request{
			UserText: "question",
			Channel:  models.ChannelTest,
		})
		require.Error(t, err)
		assert.Empty(t, store.inserted)
	})

	t.Run("flags are derived from the assistant text", func(t *testing.T) {
		t.Parallel()

		completer := &stubCompleter{reply: "Appelez-nous pour réserver, le traitement est doux."}
		store := &stubInteractionStore{}
		service := newTestService(&stubRetriever{}, completer, store)

		_, err := service.Respond(context.Background(), Request{
			UserText: "question",
			Channel:  models.ChannelTest,
		})
		require.NoError(t, err)
		require.Len(t, store.inserted, 1)
		require.NotNil(t, store.inserted[0].Flags)
		assert.Contains(t, *store.inserted[0].Flags, FlagCTAPresent)
		assert.Contains(t, *store.inserted[0].Flags, FlagPotentialMedicalAdvice)
	})
}

func TestChatWithUser(t *testing.T) {
	t.Parallel()

	t.Run("returns the reply on success", func(t *testing.T) {
		t.Parallel()

		service := newTestService(&stubRetriever{}, &stubCompleter{reply: "Ahla!"}, &stubInteractionStore{})
		reply := service.ChatWithUser(context.Background(), Request{
			UserText: "Salam",
			Channel:  models.ChannelTest,
		})
		assert.Equal(t, "Ahla!", reply)
	})

	t.Run("degrades to the fallback on failure", func(t *testing.T) {
		t.Parallel()

		store := &stubInteractionStore{}
		service := newTestService(&stubRetriever{}, &stubCompleter{err: errors.New("boom")}, store)

		reply := service.ChatWithUser(context.Background(), Request{
			UserText: "Salam",
			Channel:  models.ChannelWhatsApp,
		})
		assert.Equal(t, FallbackReply, reply)
		assert.Empty(t, store.inserted)
	})

	t.Run("persistence failure also degrades", func(t *testing.T) {
		t.Parallel()

		store := &stubInteractionStore{insertErr: errors.New("disk full")}
		service := newTestService(&stubRetriever{}, &stubCompleter{reply: "ok"}, store)

		reply := service.ChatWithUser(context.Background(), Request{
			UserText: "Salam",
			Channel:  models.ChannelTest,
		})
		assert.Equal(t, FallbackReply, reply)
	})
}

func TestConversationHistory(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := &stubInteractionStore{recent: []models.Interaction{
		{UserText: "q3", AssistantText: "a3", CreatedAt: now},
		{UserText: "q2", AssistantText: "a2", CreatedAt: now.Add(-time.Minute)},
		{UserText: "q1", AssistantText: "a1", CreatedAt: now.Add(-2 * time.Minute)},
	}}
	service := newTestService(&stubRetriever{}, &stubCompleter{reply: "ok"}, store)

	history, err := service.ConversationHistory(context.Background(), "user-1", models.ChannelWhatsApp, 3)
	require.NoError(t, err)

	// Three turns expand to six chronological messages, oldest first.
	require.Len(t, history, 6)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, "q1", history[0].Content)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, "a1", history[1].Content)
	assert.Equal(t, "q3", history[4].Content)
	assert.Equal(t, "a3", history[5].Content)
}

func TestChatWithHistory(t *testing.T) {
	t.Parallel()

	t.Run("prepends history between system and user message", func(t *testing.T) {
		t.Parallel()

		completer := &stubCompleter{reply: "ok"}
		store := &stubInteractionStore{recent: []models.Interaction{
			{UserText: "q1", AssistantText: "a1"},
		}}
		service := newTestService(&stubRetriever{}, completer, store)

		service.ChatWithHistory(context.Background(), Request{
			UserText: "q2",
			Channel:  models.ChannelWhatsApp,
			UserID:   "user-1",
		})

		// system, q1, a1, q2
		require.Len(t, completer.messages, 4)
		assert.Equal(t, "q1", completer.messages[1].Content)
		assert.Equal(t, "a1", completer.messages[2].Content)
		assert.Equal(t, "q2", completer.messages[3].Content)
	})

	t.Run("history load failure does not fail the turn", func(t *testing.T) {
		t.Parallel()

		store := &stubInteractionStore{recentErr: errors.New("db locked")}
		service := newTestService(&stubRetriever{}, &stubCompleter{reply: "ok"}, store)

		reply := service.ChatWithHistory(context.Background(), Request{
			UserText: "Salam",
			Channel:  models.ChannelWhatsApp,
			UserID:   "user-1",
		})
		assert.Equal(t, "ok", reply)
	})
}

func TestDeriveFlags(t *testing.T) {
	t.Parallel()

	t.Run("neither", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DeriveFlags("Le laser est doux et naturel."))
	})

	t.Run("cta only", func(t *testing.T) {
		t.Parallel()
		flags := DeriveFlags("Tnajem réserver un rendez-vous")
		assert.Equal(t, []string{FlagCTAPresent}, flags)
	})

	t.Run("medical only", func(t *testing.T) {
		t.Parallel()
		flags := DeriveFlags("C'est un traitement au laser")
		assert.Equal(t, []string{FlagPotentialMedicalAdvice}, flags)
	})

	t.Run("both with arabic script", func(t *testing.T) {
		t.Parallel()
		flags := DeriveFlags("العلاج متاع نا بالليزر، اعمل حجز")
		assert.Len(t, flags, 2)
	})
}
