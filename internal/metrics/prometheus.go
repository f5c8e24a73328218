package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_bot_chat_turns_total",
			Help: "Total chat turns processed, by channel",
		},
		[]string{"channel"},
	)

	ChatFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cm_bot_chat_fallbacks_total",
			Help: "Total turns answered with the fixed fallback reply",
		},
	)

	ChatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cm_bot_chat_duration_seconds",
			Help:    "End-to-end chat turn duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	RetrievalContexts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_bot_retrieval_contexts_total",
			Help: "RAG context injections, by outcome (hit or empty)",
		},
		[]string{"outcome"},
	)

	IndexedDocuments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cm_bot_indexed_documents_total",
			Help: "Knowledge snippets indexed into the vector store",
		},
	)

	EvalRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cm_bot_eval_runs_total",
			Help: "Completed evaluation runs",
		},
	)

	Transcriptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_bot_transcriptions_total",
			Help: "Audio transcription requests, by status",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(ChatTurns)
	prometheus.MustRegister(ChatFallbacks)
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(RetrievalContexts)
	prometheus.MustRegister(IndexedDocuments)
	prometheus.MustRegister(EvalRuns)
	prometheus.MustRegister(Transcriptions)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
