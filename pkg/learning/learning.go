// Package learning implements the Learning Loop (spec §4.6): feedback
// scoring, EMA-updated per-(model, task_type) weights, and A/B testing,
// translated from the teacher's original Python LearningLoop.
package learning

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

const emaAlpha = 0.1

const (
	prMergedBonus     = 0.2
	prRevertedPenalty = -0.5
)

var outcomeWeights = map[types.Outcome]float64{
	types.OutcomeSuccess: 1.0,
	types.OutcomePartial: 0.5,
	types.OutcomeFailure: 0.0,
}

type weightKey struct {
	modelID  string
	taskType types.TaskType
}

// Sink is the slice of telemetry.Sink the Learning Loop needs: a
// notification every time a feedback record lands in a running A/B
// test's arm. Declared locally (rather than importing pkg/telemetry)
// so the Loop stays decoupled from the telemetry package's wiring.
type Sink interface {
	RecordABSample(testID, arm string)
}

type noopSink struct{}

func (noopSink) RecordABSample(string, string) {}

// Loop is the Learning Loop. The zero value is not usable; use New.
type Loop struct {
	mu      sync.RWMutex
	weights map[weightKey]float64
	tests   map[string]*ABTest
	rand    *rand.Rand

	logger    *slog.Logger
	telemetry Sink
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger injects the logger the Loop reports weight updates and
// feedback insights through. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithTelemetry injects the sink notified whenever a feedback record
// is added to an active A/B test's arm. Defaults to a no-op sink.
func WithTelemetry(sink Sink) Option {
	return func(l *Loop) { l.telemetry = sink }
}

// New creates an empty Learning Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		weights:   make(map[weightKey]float64),
		tests:     make(map[string]*ABTest),
		rand:      rand.New(rand.NewSource(1)),
		logger:    slog.Default(),
		telemetry: noopSink{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetTelemetry rewires the sink notified of A/B sample assignment
// after construction, mirroring breaker.Registry.OnTransition: a
// caller that builds a Loop via WithLearning still gets its Router's
// telemetry sink wired in without repeating WithTelemetry at Loop
// construction time.
func (l *Loop) SetTelemetry(sink Sink) {
	l.mu.Lock()
	l.telemetry = sink
	l.mu.Unlock()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScoreFeedback computes a normalized [0,1] score from a single
// feedback record, per _calculate_feedback_score: outcome base, then
// blended with quality_score, PR merge/revert bonus, and user rating.
func ScoreFeedback(fb types.FeedbackData) float64 {
	score, ok := outcomeWeights[fb.Outcome]
	if !ok {
		score = 0.5
	}

	if fb.QualityScore != nil {
		score = (score + *fb.QualityScore) / 2
	}

	if fb.PRMerged {
		score += prMergedBonus
	}
	if fb.PRReverted {
		score += prRevertedPenalty
	}

	if fb.UserRating != nil {
		ratingScore := (float64(*fb.UserRating) - 1) / 4
		score = (score + ratingScore) / 2
	}

	return clamp01(score)
}

// RecordFeedback scores fb, folds it into the (model, task_type)
// weight via an exponential moving average (alpha=0.1), and updates
// any active A/B test it belongs to. decision is the types.Decision
// that produced fb, when the caller has it on hand; passing it enables
// cost-overrun insight logging (_log_insights compares actual cost
// against the decision's estimate).
func (l *Loop) RecordFeedback(fb types.FeedbackData, decision ...*types.Decision) {
	score := ScoreFeedback(fb)
	key := weightKey{modelID: fb.ModelID, taskType: fb.TaskType}

	l.mu.Lock()
	current, ok := l.weights[key]
	if !ok {
		current = 0.5
	}
	updated := clamp01(emaAlpha*score + (1-emaAlpha)*current)
	l.weights[key] = updated

	var abSamples [][2]string // testID, arm
	now := time.Now()
	for _, test := range l.tests {
		if test.TaskType != fb.TaskType || !test.isActive(now) {
			continue
		}
		switch fb.ModelID {
		case test.ModelA:
			test.resultsA = append(test.resultsA, fb)
			abSamples = append(abSamples, [2]string{test.TestID, "a"})
		case test.ModelB:
			test.resultsB = append(test.resultsB, fb)
			abSamples = append(abSamples, [2]string{test.TestID, "b"})
		}
	}
	l.mu.Unlock()

	l.logger.Debug("updated model weight",
		"model_id", fb.ModelID, "task_type", fb.TaskType,
		"previous_weight", current, "new_weight", updated)

	for _, sample := range abSamples {
		l.telemetry.RecordABSample(sample[0], sample[1])
	}

	l.logInsights(fb, firstDecision(decision))
}

func firstDecision(decision []*types.Decision) *types.Decision {
	if len(decision) == 0 {
		return nil
	}
	return decision[0]
}

// logInsights ports _log_insights: a single warning line combining
// every anomaly this feedback record surfaces (cost overrun vs the
// routing decision's estimate, a low quality score, a reverted PR).
func (l *Loop) logInsights(fb types.FeedbackData, decision *types.Decision) {
	var insights []string

	if decision != nil && fb.ActualCost != nil && *fb.ActualCost > decision.EstimatedCost*1.5 {
		insights = append(insights, fmt.Sprintf("cost overrun: actual $%.6f vs estimated $%.6f", *fb.ActualCost, decision.EstimatedCost))
	}

	if fb.QualityScore != nil && *fb.QualityScore < 0.5 {
		insights = append(insights, fmt.Sprintf("low quality score: %.2f", *fb.QualityScore))
	}

	if fb.PRReverted {
		insights = append(insights, "PR was reverted - investigate failure mode")
	}

	if len(insights) > 0 {
		l.logger.Warn("feedback insights", "model_id", fb.ModelID, "insights", strings.Join(insights, "; "))
	}
}

// Weight returns the learned weight for (modelID, taskType), defaulting
// to the neutral 0.5 when no feedback has been recorded.
func (l *Loop) Weight(modelID string, taskType types.TaskType) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if w, ok := l.weights[weightKey{modelID: modelID, taskType: taskType}]; ok {
		return w
	}
	return 0.5
}

// Reset clears learned weights. An empty modelID or taskType acts as a
// wildcard; passing both empty resets every weight to its absence
// (as if never recorded), matching reset_learning's "clear all" path.
func (l *Loop) Reset(modelID string, taskType types.TaskType) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if modelID == "" && taskType == "" {
		l.weights = make(map[weightKey]float64)
		return
	}

	for key := range l.weights {
		if modelID != "" && key.modelID != modelID {
			continue
		}
		if taskType != "" && key.taskType != taskType {
			continue
		}
		l.weights[key] = 0.5
	}
}

// ExportedWeight is one entry of ExportMetrics's weight snapshot.
type ExportedWeight struct {
	ModelID  string
	TaskType types.TaskType
	Weight   float64
}

// Metrics is the Learning Loop's exportable state, per export_metrics.
type Metrics struct {
	Timestamp     time.Time
	ModelWeights  []ExportedWeight
	ActiveABTests []ABTestSummary
}

// ExportMetrics snapshots every learned weight and active A/B test.
func (l *Loop) ExportMetrics(now time.Time) Metrics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	weights := make([]ExportedWeight, 0, len(l.weights))
	for k, w := range l.weights {
		weights = append(weights, ExportedWeight{ModelID: k.modelID, TaskType: k.taskType, Weight: w})
	}
	sort.Slice(weights, func(i, j int) bool {
		if weights[i].ModelID != weights[j].ModelID {
			return weights[i].ModelID < weights[j].ModelID
		}
		return weights[i].TaskType < weights[j].TaskType
	})

	var active []ABTestSummary
	for _, test := range l.tests {
		if test.isActive(now) {
			active = append(active, test.summary())
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].TestID < active[j].TestID })

	return Metrics{Timestamp: now, ModelWeights: weights, ActiveABTests: active}
}
