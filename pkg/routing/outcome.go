package routing

import (
	"time"

	"github.com/blueberrycongee/moerouter/pkg/learning"
	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

// RecordOutcome reports a single dispatch result for modelID, fanning
// out to the Performance Tracker and the resolved provider's Circuit
// Breaker, per spec §4.7's closing paragraph.
func (r *Router) RecordOutcome(modelID string, taskType types.TaskType, success bool, latencyMs, cost, qualityScore *float64, recordErr error) {
	reg := r.registrySource()
	r.tracker.RecordOutcome(modelID, taskType, success, latencyMs, cost, qualityScore, recordErr)

	if m, ok := reg.Get(modelID); ok {
		if success {
			r.breakers.RecordSuccess(string(m.Provider))
		} else {
			r.breakers.RecordFailure(string(m.Provider))
		}
	}
}

// RecordFeedback reports a richer outcome that additionally drives
// the Learning Loop and any active A/B test, per spec §4.7's
// "RecordFeedback(fb, decision?)". decision is optional context from
// the originating SelectModel call; the Learning Loop uses it to flag
// cost overruns in its insight logging when present.
func (r *Router) RecordFeedback(fb types.FeedbackData, decision *types.Decision) {
	success := fb.Outcome == types.OutcomeSuccess
	var latencyMs *float64
	if fb.ActualLatencyMs != nil {
		v := *fb.ActualLatencyMs
		latencyMs = &v
	}
	var cost *float64
	if fb.ActualCost != nil {
		v := *fb.ActualCost
		cost = &v
	}

	r.RecordOutcome(fb.ModelID, fb.TaskType, success, latencyMs, cost, fb.QualityScore, nil)
	r.learning.RecordFeedback(fb, decision)
}

// GetModelPerformanceReport exposes the Learning Loop's supplemented
// operator-facing report (spec §6), backed by this Router's tracker.
func (r *Router) GetModelPerformanceReport(modelID string, taskType types.TaskType) learning.PerformanceReport {
	return r.learning.GetModelPerformanceReport(r.tracker, modelID, taskType)
}

// ExportMetrics snapshots the Learning Loop's learned weights and
// active A/B tests as of now.
func (r *Router) ExportMetrics(now time.Time) learning.Metrics {
	return r.learning.ExportMetrics(now)
}
