package asr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/metrics"
	"github.com/laserostop/cm-backend/pkg/logger"
)

var mimeToExt = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "mp4",
	"audio/wav":   "wav",
	"audio/webm":  "webm",
	"audio/m4a":   "m4a",
	"audio/x-m4a": "m4a",
}

// Transcriber is a thin call-through to the speech-to-text API for voice
// messages. A failed transcription degrades to an empty string.
type Transcriber struct {
	api   *openai.Client
	model string
}

func NewTranscriber(apiKey, model string) *Transcriber {
	return &Transcriber{
		api:   openai.NewClient(apiKey),
		model: model,
	}
}

// Transcribe converts audio bytes to text. language and prompt are
// optional hints passed through to the API.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType, language, prompt string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}

	ext, ok := mimeToExt[strings.ToLower(mimeType)]
	if !ok {
		logger.Warn("Unsupported audio MIME type, defaulting to mp3", zap.String("mime_type", mimeType))
		ext = "mp3"
	}

	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   bytes.NewReader(audio),
		FilePath: "audio." + ext,
		Language: language,
		Prompt:   prompt,
	})
	if err != nil {
		logger.Error("Transcription failed", zap.Error(err))
		metrics.Transcriptions.WithLabelValues("error").Inc()
		return "", nil
	}

	text := strings.TrimSpace(resp.Text)
	metrics.Transcriptions.WithLabelValues("ok").Inc()

	logger.Info("Audio transcribed",
		zap.Int("audio_bytes", len(audio)),
		zap.Int("text_length", len(text)),
	)

	return text, nil
}
