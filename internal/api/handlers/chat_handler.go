package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/chat"
	"github.com/laserostop/cm-backend/internal/storage/models"
	"github.com/laserostop/cm-backend/pkg/logger"
)

type ChatHandler struct {
	service    *chat.Service
	ragVersion string
}

func NewChatHandler(service *chat.Service, ragVersion string) *ChatHandler {
	return &ChatHandler{
		service:    service,
		ragVersion: ragVersion,
	}
}

// HandleChat answers one chat turn. The handler never returns an error
// status for generation failures: those degrade to the fixed fallback
// reply inside the service.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Text         string `json:"text"`
		UserID       string `json:"user_id"`
		Channel      string `json:"channel"`
		UseRAG       *bool  `json:"use_rag"`
		ModelVersion string `json:"model_version"`
		UseHistory   bool   `json:"use_history"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse chat request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text is required",
		})
	}

	if req.Channel == "" {
		req.Channel = models.ChannelTest
	}

	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	chatReq := chat.Request{
		UserText:     req.Text,
		Channel:      req.Channel,
		UserID:       req.UserID,
		UseRAG:       useRAG,
		ModelVersion: req.ModelVersion,
	}

	var reply string
	if req.UseHistory && req.UserID != "" {
		reply = h.service.ChatWithHistory(c.Context(), chatReq)
	} else {
		reply = h.service.ChatWithUser(c.Context(), chatReq)
	}

	resp := fiber.Map{
		"reply":    reply,
		"rag_used": useRAG,
	}
	if req.ModelVersion != "" {
		resp["model_version"] = req.ModelVersion
	}
	if useRAG {
		resp["rag_version"] = h.ragVersion
	}

	return c.JSON(resp)
}
