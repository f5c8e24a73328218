package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/asr"
	"github.com/laserostop/cm-backend/pkg/logger"
)

type TranscribeHandler struct {
	transcriber *asr.Transcriber
}

func NewTranscribeHandler(transcriber *asr.Transcriber) *TranscribeHandler {
	return &TranscribeHandler{transcriber: transcriber}
}

// HandleTranscribe converts an uploaded voice message into text. The
// audio arrives as the multipart field "audio"; optional form fields
// "language" and "prompt" are passed through as hints.
func (h *TranscribeHandler) HandleTranscribe(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "audio file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded audio", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not read audio file",
		})
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read uploaded audio", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not read audio file",
		})
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	text, err := h.transcriber.Transcribe(
		c.Context(),
		audio,
		mimeType,
		c.FormValue("language"),
		c.FormValue("prompt"),
	)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"text": text,
	})
}
