package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/chat"
	"github.com/laserostop/cm-backend/internal/storage/models"
	"github.com/laserostop/cm-backend/pkg/logger"
)

// WebhookHandler receives inbound messages from the social channels.
// Replies are computed synchronously and returned in the webhook
// response; platform-side delivery is handled by the channel bridges.
type WebhookHandler struct {
	service     *chat.Service
	verifyToken string
}

func NewWebhookHandler(service *chat.Service, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		service:     service,
		verifyToken: verifyToken,
	}
}

// HandleVerification answers the Meta/WhatsApp subscription handshake:
// echo hub.challenge when the verify token matches.
func (h *WebhookHandler) HandleVerification(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		return c.SendString(challenge)
	}

	logger.Warn("Webhook verification failed",
		zap.String("mode", mode),
		zap.String("path", c.Path()),
	)
	return c.SendStatus(fiber.StatusForbidden)
}

func (h *WebhookHandler) HandleWhatsApp(c *fiber.Ctx) error {
	return h.handleInbound(c, models.ChannelWhatsApp)
}

func (h *WebhookHandler) HandleMeta(c *fiber.Ctx) error {
	return h.handleInbound(c, models.ChannelMeta)
}

func (h *WebhookHandler) HandleTikTok(c *fiber.Ctx) error {
	return h.handleInbound(c, models.ChannelTikTok)
}

func (h *WebhookHandler) handleInbound(c *fiber.Ctx, channel string) error {
	var payload struct {
		UserID string `json:"user_id"`
		Text   string `json:"text"`
	}

	if err := c.BodyParser(&payload); err != nil {
		logger.Error("Failed to parse webhook payload",
			zap.String("channel", channel),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	// Delivery receipts and non-text events carry no text; acknowledge
	// them so the platform does not retry.
	if payload.Text == "" {
		return c.JSON(fiber.Map{"status": "received"})
	}

	reply := h.service.ChatWithHistory(c.Context(), chat.Request{
		UserText: payload.Text,
		Channel:  channel,
		UserID:   payload.UserID,
		UseRAG:   true,
	})

	return c.JSON(fiber.Map{
		"status": "received",
		"reply":  reply,
	})
}
