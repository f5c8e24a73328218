package models

import "time"

// Channel names accepted on the chat path. "eval" is reserved for the
// offline evaluation harness.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelMeta     = "meta"
	ChannelTikTok   = "tiktok"
	ChannelTest     = "test"
	ChannelEval     = "eval"
)

// Interaction is one logged chat turn. Rows are append-only.
type Interaction struct {
	ID            string
	UserID        *string
	Channel       string
	UserText      string
	AssistantText string
	CreatedAt     time.Time
	ModelVersion  string
	RAGVersion    *string
	RAGUsed       bool
	Flags         *string
}

// EvalExample is a curated gold input, optionally with an ideal answer.
type EvalExample struct {
	ID          int64
	InputText   string
	IdealAnswer *string
	Category    *string
	Sensitivity string
	CreatedAt   time.Time
}

const (
	SensitivityNormal      = "normal"
	SensitivityMedicalRisk = "medical_risk"
)

// EvalRun holds the aggregates of one evaluation invocation.
type EvalRun struct {
	ID              string
	CreatedAt       time.Time
	ModelVersion    string
	RAGVersion      *string
	NumExamples     int
	AccuracyScore   *float64
	DialectScore    *float64
	SafetyScore     float64
	CTAPresenceRate float64
	Notes           *string
}

// EvalResult is the per-example outcome of a run.
type EvalResult struct {
	ID              int64
	EvalRunID       string
	EvalExampleID   int64
	InputText       string
	IdealAnswer     *string
	PredictedAnswer string
	IsAcceptable    *bool
	ErrorType       *string
	CreatedAt       time.Time
}
