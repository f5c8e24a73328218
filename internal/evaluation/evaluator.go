package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/chat"
	"github.com/laserostop/cm-backend/internal/metrics"
	"github.com/laserostop/cm-backend/internal/storage/models"
	"github.com/laserostop/cm-backend/pkg/logger"
)

// ErrNoExamples is returned when a run finds nothing to evaluate.
var ErrNoExamples = errors.New("no eval examples available")

// Responder produces an answer for one eval input. The chat service's
// propagating entry point satisfies it, so per-example failures stay
// visible to the harness instead of being swallowed by the user-facing
// fallback.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) (string, error)
}

// Store is the persistence surface the evaluator needs.
type Store interface {
	ListEvalExamples(category string, limit int) ([]models.EvalExample, error)
	SaveEvalRun(run *models.EvalRun, results []models.EvalResult) error
	GetEvalRun(id string) (*models.EvalRun, error)
	ErrorBreakdown(runID string) (map[string]int, error)
}

// Options parameterize a single run.
type Options struct {
	ModelVersion string
	RAGVersion   string
	UseRAG       bool
	Limit        int
	Category     string
	Notes        string
}

// Evaluator replays gold examples through the chat pipeline and scores
// the answers heuristically.
type Evaluator struct {
	responder Responder
	store     Store
	scorer    QualityScorer
	threshold float64
}

func NewEvaluator(responder Responder, store Store, threshold float64) *Evaluator {
	if threshold <= 0 {
		threshold = DefaultQualityThreshold
	}

	e := &Evaluator{
		responder: responder,
		store:     store,
		threshold: threshold,
	}
	e.scorer = func(predicted string, ideal *string) Quality {
		return EvaluateAnswerQuality(predicted, ideal, e.threshold)
	}
	return e
}

// SetScorer swaps the answer-quality scorer, e.g. for a stricter judge.
func (e *Evaluator) SetScorer(scorer QualityScorer) {
	if scorer != nil {
		e.scorer = scorer
	}
}

// ExampleOutcome is the scored verdict for one example.
type ExampleOutcome struct {
	ExampleID       int64  `json:"eval_example_id"`
	InputText       string `json:"input_text"`
	PredictedAnswer string `json:"predicted_answer"`
	IsAcceptable    *bool  `json:"is_acceptable"`
	ErrorType       string `json:"error_type,omitempty"`
	CTAPresent      bool   `json:"cta_present"`
	Safe            bool   `json:"safe"`
}

// Summary is the in-memory report of a finished run.
type Summary struct {
	RunID           string           `json:"eval_run_id"`
	ModelVersion    string           `json:"model_version"`
	RAGVersion      string           `json:"rag_version,omitempty"`
	NumExamples     int              `json:"num_examples"`
	AccuracyScore   *float64         `json:"accuracy_score"`
	SafetyScore     float64          `json:"safety_score"`
	CTAPresenceRate float64          `json:"cta_presence_rate"`
	Outcomes        []ExampleOutcome `json:"results"`
	ErrorBreakdown  map[string]int   `json:"error_breakdown"`
}

// Run evaluates every matching example sequentially and persists the run
// plus all per-example results in one transaction. A generation failure
// on one example is recorded as generation_error and the run continues.
func (e *Evaluator) Run(ctx context.Context, opts Options) (*Summary, error) {
	examples, err := e.store.ListEvalExamples(opts.Category, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load eval examples: %w", err)
	}
	if len(examples) == 0 {
		return nil, ErrNoExamples
	}

	runID := uuid.New().String()
	logger.Info("Starting eval run",
		zap.String("eval_run_id", runID),
		zap.String("model", opts.ModelVersion),
		zap.String("rag_version", opts.RAGVersion),
		zap.Bool("use_rag", opts.UseRAG),
		zap.Int("num_examples", len(examples)),
	)

	now := time.Now().UTC()
	results := make([]models.EvalResult, 0, len(examples))
	outcomes := make([]ExampleOutcome, 0, len(examples))

	labeled, accepted := 0, 0
	safeCount, ctaCount := 0, 0

	for _, ex := range examples {
		outcome := e.evaluateExample(ctx, ex, opts)
		outcomes = append(outcomes, outcome)

		// Accuracy only covers examples carrying an ideal answer; a
		// generation failure on an unlabeled example stays out of it.
		if ex.IdealAnswer != nil && *ex.IdealAnswer != "" {
			labeled++
			if outcome.IsAcceptable != nil && *outcome.IsAcceptable {
				accepted++
			}
		}
		if outcome.Safe {
			safeCount++
		}
		if outcome.CTAPresent {
			ctaCount++
		}

		result := models.EvalResult{
			EvalRunID:       runID,
			EvalExampleID:   ex.ID,
			InputText:       ex.InputText,
			IdealAnswer:     ex.IdealAnswer,
			PredictedAnswer: outcome.PredictedAnswer,
			IsAcceptable:    outcome.IsAcceptable,
			CreatedAt:       now,
		}
		if outcome.ErrorType != "" {
			errorType := outcome.ErrorType
			result.ErrorType = &errorType
		}
		results = append(results, result)
	}

	run := &models.EvalRun{
		ID:              runID,
		CreatedAt:       now,
		ModelVersion:    opts.ModelVersion,
		NumExamples:     len(examples),
		SafetyScore:     float64(safeCount) / float64(len(examples)),
		CTAPresenceRate: float64(ctaCount) / float64(len(examples)),
	}
	// A baseline run without retrieval carries no rag_version.
	if opts.UseRAG && opts.RAGVersion != "" {
		ragVersion := opts.RAGVersion
		run.RAGVersion = &ragVersion
	}
	if opts.Notes != "" {
		notes := opts.Notes
		run.Notes = &notes
	}
	if labeled > 0 {
		accuracy := float64(accepted) / float64(labeled)
		run.AccuracyScore = &accuracy
	}

	if err := e.store.SaveEvalRun(run, results); err != nil {
		return nil, fmt.Errorf("failed to persist eval run: %w", err)
	}
	metrics.EvalRuns.Inc()

	summaryRAGVersion := ""
	if run.RAGVersion != nil {
		summaryRAGVersion = *run.RAGVersion
	}

	summary := &Summary{
		RunID:           runID,
		ModelVersion:    opts.ModelVersion,
		RAGVersion:      summaryRAGVersion,
		NumExamples:     len(examples),
		AccuracyScore:   run.AccuracyScore,
		SafetyScore:     run.SafetyScore,
		CTAPresenceRate: run.CTAPresenceRate,
		Outcomes:        outcomes,
		ErrorBreakdown:  breakdownFromOutcomes(outcomes),
	}

	logger.Info("Eval run finished",
		zap.String("eval_run_id", runID),
		zap.Int("num_examples", summary.NumExamples),
		zap.Float64("safety_score", summary.SafetyScore),
		zap.Float64("cta_presence_rate", summary.CTAPresenceRate),
	)

	return summary, nil
}

func (e *Evaluator) evaluateExample(ctx context.Context, ex models.EvalExample, opts Options) ExampleOutcome {
	outcome := ExampleOutcome{
		ExampleID: ex.ID,
		InputText: ex.InputText,
		Safe:      true,
	}

	predicted, err := e.responder.Respond(ctx, chat.Request{
		UserText:     ex.InputText,
		Channel:      models.ChannelEval,
		UserID:       fmt.Sprintf("eval_example_%d", ex.ID),
		UseRAG:       opts.UseRAG,
		RAGVersion:   opts.RAGVersion,
		ModelVersion: opts.ModelVersion,
	})
	if err != nil {
		logger.Error("Eval example generation failed",
			zap.Int64("eval_example_id", ex.ID),
			zap.Error(err),
		)
		acceptable := false
		outcome.IsAcceptable = &acceptable
		outcome.ErrorType = ErrorGeneration
		return outcome
	}

	outcome.PredictedAnswer = predicted
	outcome.CTAPresent = CheckCTAPresence(predicted)

	quality := e.scorer(predicted, ex.IdealAnswer)
	outcome.IsAcceptable = quality.Acceptable
	outcome.ErrorType = quality.ErrorType

	// A safety violation dominates, but only when quality scoring did
	// not already name a failure.
	safe, safetyError := EvaluateSafety(predicted)
	outcome.Safe = safe
	if !safe && outcome.ErrorType == "" {
		outcome.ErrorType = safetyError
	}

	return outcome
}

func breakdownFromOutcomes(outcomes []ExampleOutcome) map[string]int {
	breakdown := make(map[string]int)
	for _, o := range outcomes {
		if o.ErrorType != "" {
			breakdown[o.ErrorType]++
		}
	}
	return breakdown
}

// RunSummary reloads a persisted run with its error breakdown.
func (e *Evaluator) RunSummary(runID string) (*models.EvalRun, map[string]int, error) {
	run, err := e.store.GetEvalRun(runID)
	if err != nil {
		return nil, nil, err
	}

	breakdown, err := e.store.ErrorBreakdown(runID)
	if err != nil {
		return nil, nil, err
	}

	return run, breakdown, nil
}

// RunComparison holds the aggregate deltas between two persisted runs,
// computed as b minus a.
type RunComparison struct {
	RunA          *models.EvalRun
	RunB          *models.EvalRun
	AccuracyDelta *float64
	SafetyDelta   float64
	CTADelta      float64
}

// CompareRuns diffs two runs, e.g. a RAG-on run against its RAG-off
// baseline. AccuracyDelta is nil unless both runs scored accuracy.
func (e *Evaluator) CompareRuns(runAID, runBID string) (*RunComparison, error) {
	runA, err := e.store.GetEvalRun(runAID)
	if err != nil {
		return nil, err
	}
	runB, err := e.store.GetEvalRun(runBID)
	if err != nil {
		return nil, err
	}

	cmp := &RunComparison{
		RunA:        runA,
		RunB:        runB,
		SafetyDelta: runB.SafetyScore - runA.SafetyScore,
		CTADelta:    runB.CTAPresenceRate - runA.CTAPresenceRate,
	}
	if runA.AccuracyScore != nil && runB.AccuracyScore != nil {
		delta := *runB.AccuracyScore - *runA.AccuracyScore
		cmp.AccuracyDelta = &delta
	}

	return cmp, nil
}
