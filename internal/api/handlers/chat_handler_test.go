package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laserostop/cm-backend/internal/chat"
	"github.com/laserostop/cm-backend/internal/llm"
	"github.com/laserostop/cm-backend/internal/storage/models"
)

type noopRetriever struct{}

func (noopRetriever) BuildContext(context.Context, string, int) string { return "" }

type fixedCompleter struct {
	reply string
}

func (f fixedCompleter) Complete(context.Context, []llm.Message, string, float32, int) (string, error) {
	return f.reply, nil
}

type memStore struct {
	inserted []*models.Interaction
}

func (m *memStore) InsertInteraction(i *models.Interaction) error {
	m.inserted = append(m.inserted, i)
	return nil
}

func (m *memStore) RecentInteractions(string, string, int) ([]models.Interaction, error) {
	return nil, nil
}

func newChatApp(reply string, store *memStore) *fiber.App {
	service := chat.NewService(noopRetriever{}, fixedCompleter{reply: reply}, store, chat.Options{
		DefaultModel: "gpt-4o-mini",
		RAGVersion:   "rag_v1",
	})
	handler := NewChatHandler(service, "rag_v1")

	app := fiber.New()
	app.Post("/chat", handler.HandleChat)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandleChat(t *testing.T) {
	t.Run("answers a valid request", func(t *testing.T) {
		store := &memStore{}
		app := newChatApp("Ahla! Kifech najem n3awnek?", store)

		resp := postJSON(t, app, "/chat", map[string]any{
			"text":    "Salam",
			"user_id": "user-1",
			"channel": "whatsapp",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "Ahla! Kifech najem n3awnek?", body["reply"])
		assert.Equal(t, true, body["rag_used"])
		assert.Equal(t, "rag_v1", body["rag_version"])

		require.Len(t, store.inserted, 1)
		assert.Equal(t, models.ChannelWhatsApp, store.inserted[0].Channel)
	})

	t.Run("missing text is rejected", func(t *testing.T) {
		app := newChatApp("ok", &memStore{})

		resp := postJSON(t, app, "/chat", map[string]any{"user_id": "user-1"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		app := newChatApp("ok", &memStore{})

		req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("channel defaults to test", func(t *testing.T) {
		store := &memStore{}
		app := newChatApp("ok", store)

		resp := postJSON(t, app, "/chat", map[string]any{"text": "Salam"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, store.inserted, 1)
		assert.Equal(t, models.ChannelTest, store.inserted[0].Channel)
	})

	t.Run("rag can be switched off", func(t *testing.T) {
		store := &memStore{}
		app := newChatApp("ok", store)

		resp := postJSON(t, app, "/chat", map[string]any{
			"text":    "Salam",
			"use_rag": false,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, false, body["rag_used"])
		_, hasRAGVersion := body["rag_version"]
		assert.False(t, hasRAGVersion)

		require.Len(t, store.inserted, 1)
		assert.False(t, store.inserted[0].RAGUsed)
	})
}

func TestHandleWebhookVerification(t *testing.T) {
	service := chat.NewService(noopRetriever{}, fixedCompleter{reply: "ok"}, &memStore{}, chat.Options{
		DefaultModel: "gpt-4o-mini",
	})
	handler := NewWebhookHandler(service, "secret-token")

	app := fiber.New()
	app.Get("/webhooks/whatsapp", handler.HandleVerification)

	t.Run("echoes the challenge on a valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		buf := new(bytes.Buffer)
		_, err = buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "12345", buf.String())
	})

	t.Run("rejects a wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestHandleWebhookInbound(t *testing.T) {
	store := &memStore{}
	service := chat.NewService(noopRetriever{}, fixedCompleter{reply: "Marhba!"}, store, chat.Options{
		DefaultModel: "gpt-4o-mini",
	})
	handler := NewWebhookHandler(service, "secret-token")

	app := fiber.New()
	app.Post("/webhooks/whatsapp", handler.HandleWhatsApp)

	t.Run("text message gets a reply", func(t *testing.T) {
		resp := postJSON(t, app, "/webhooks/whatsapp", map[string]any{
			"user_id": "wa-1",
			"text":    "Salam",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "received", body["status"])
		assert.Equal(t, "Marhba!", body["reply"])
	})

	t.Run("empty text is acknowledged without a reply", func(t *testing.T) {
		resp := postJSON(t, app, "/webhooks/whatsapp", map[string]any{"user_id": "wa-1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "received", body["status"])
		_, hasReply := body["reply"]
		assert.False(t, hasReply)
	})
}
