package learning

import (
	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
	"github.com/blueberrycongee/moerouter/pkg/tracker"
)

// PerformanceSource is the narrow read contract the Learning Loop
// needs from the Performance Tracker to build a report.
// *tracker.Tracker satisfies it.
type PerformanceSource interface {
	FeedbackHistory(modelID string, taskType types.TaskType, limit int) []tracker.FeedbackEntry
}

// PerformanceReport is the Learning Loop's view of a model's recent
// track record plus its learned weight, per
// get_model_performance_report.
type PerformanceReport struct {
	ModelID       string
	TaskType      types.TaskType
	SampleSize    int
	SuccessRate   float64
	AvgCost       float64
	AvgLatencyMs  float64
	AvgQuality    float64
	LearnedWeight float64
}

// reportHistoryLimit bounds how much history backs a single report.
const reportHistoryLimit = 500

// GetModelPerformanceReport summarizes modelID's recent history for
// taskType plus its learned weight. An empty taskType resolves to
// code generation, preserving the original's `task_type or
// TaskType.CODE_GENERATION` default rather than treating it as "all
// task types" — see DESIGN.md.
func (l *Loop) GetModelPerformanceReport(source PerformanceSource, modelID string, taskType types.TaskType) PerformanceReport {
	effective := taskType
	if effective == "" {
		effective = types.TaskCodeGeneration
	}

	history := source.FeedbackHistory(modelID, effective, reportHistoryLimit)
	report := PerformanceReport{
		ModelID:       modelID,
		TaskType:      effective,
		SampleSize:    len(history),
		LearnedWeight: l.Weight(modelID, effective),
	}
	if len(history) == 0 {
		return report
	}

	var successes int
	var sumCost, sumLatency, sumQuality float64
	var costN, latencyN, qualityN int
	for _, fb := range history {
		if fb.Success {
			successes++
		}
		if fb.Cost != nil {
			sumCost += *fb.Cost
			costN++
		}
		if fb.LatencyMs != nil {
			sumLatency += *fb.LatencyMs
			latencyN++
		}
		if fb.QualityScore != nil {
			sumQuality += *fb.QualityScore
			qualityN++
		}
	}

	report.SuccessRate = float64(successes) / float64(len(history))
	if costN > 0 {
		report.AvgCost = sumCost / float64(costN)
	}
	if latencyN > 0 {
		report.AvgLatencyMs = sumLatency / float64(latencyN)
	}
	if qualityN > 0 {
		report.AvgQuality = sumQuality / float64(qualityN)
	}

	return report
}
