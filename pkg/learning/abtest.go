package learning

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

// ABTest tracks a running A/B comparison between two models for a
// given task type, mirroring ABTestConfig plus its accumulated
// results.
type ABTest struct {
	TestID       string
	ModelA       string
	ModelB       string
	TaskType     types.TaskType
	TrafficSplit float64
	MinSamples   int
	DurationDays int
	StartedAt    time.Time

	resultsA []types.FeedbackData
	resultsB []types.FeedbackData
}

func (t *ABTest) isActive(now time.Time) bool {
	return now.Sub(t.StartedAt) < time.Duration(t.DurationDays)*24*time.Hour
}

// ABTestSummary is the exported, read-only view of a running test.
type ABTestSummary struct {
	TestID    string
	ModelA    string
	ModelB    string
	TaskType  types.TaskType
	SamplesA  int
	SamplesB  int
	StartedAt time.Time
}

func (t *ABTest) summary() ABTestSummary {
	return ABTestSummary{
		TestID:    t.TestID,
		ModelA:    t.ModelA,
		ModelB:    t.ModelB,
		TaskType:  t.TaskType,
		SamplesA:  len(t.resultsA),
		SamplesB:  len(t.resultsB),
		StartedAt: t.StartedAt,
	}
}

// StartABTest registers a new A/B test and returns its test ID. The
// ID is a uuid rather than the original's timestamp-derived string —
// see DESIGN.md — so concurrently started tests can never collide.
func (l *Loop) StartABTest(now time.Time, modelA, modelB string, taskType types.TaskType, trafficSplit float64, minSamples, durationDays int) string {
	testID := "ab_" + uuid.New().String()

	l.mu.Lock()
	l.tests[testID] = &ABTest{
		TestID:       testID,
		ModelA:       modelA,
		ModelB:       modelB,
		TaskType:     taskType,
		TrafficSplit: trafficSplit,
		MinSamples:   minSamples,
		DurationDays: durationDays,
		StartedAt:    now,
	}
	l.mu.Unlock()

	l.logger.Info(fmt.Sprintf("started A/B test %s: %s vs %s for %s (split: %.0f%%)", testID, modelA, modelB, taskType, trafficSplit*100))

	return testID
}

// GetABTestModel assigns a model for taskType from any active test
// via random traffic-split assignment, falling back to defaultModel
// when no test is active for that task type.
func (l *Loop) GetABTestModel(now time.Time, taskType types.TaskType, defaultModel string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, test := range l.tests {
		if test.TaskType != taskType || !test.isActive(now) {
			continue
		}
		if l.rand.Float64() < test.TrafficSplit {
			return test.ModelA
		}
		return test.ModelB
	}
	return defaultModel
}

// VariantStats summarizes one side of an A/B test's collected
// feedback, per _calculate_variant_stats.
type VariantStats struct {
	ModelID     string
	SampleSize  int
	AvgScore    float64
	SuccessRate float64
}

func variantStats(modelID string, feedback []types.FeedbackData) VariantStats {
	stats := VariantStats{ModelID: modelID, SampleSize: len(feedback)}
	if len(feedback) == 0 {
		return stats
	}

	var sumScore float64
	var successes int
	for _, fb := range feedback {
		sumScore += ScoreFeedback(fb)
		if fb.Outcome == types.OutcomeSuccess {
			successes++
		}
	}
	stats.AvgScore = sumScore / float64(len(feedback))
	stats.SuccessRate = float64(successes) / float64(len(feedback))
	return stats
}

// ABAnalysis is the result of AnalyzeABTest, per analyze_ab_test.
type ABAnalysis struct {
	TestID         string
	VariantA       VariantStats
	VariantB       VariantStats
	Winner         string
	ConfidencePct  float64
	Recommendation string
}

// ErrABTestNotFound is returned by AnalyzeABTest for an unknown ID.
var ErrABTestNotFound = fmt.Errorf("learning: a/b test not found")

// AnalyzeABTest compares the two variants' accumulated feedback, per
// analyze_ab_test / _get_ab_recommendation: a winner is declared only
// once both variants clear minSamples and their average scores differ
// by at least 5% (relative), with confidence reported as that
// relative percentage difference.
func (l *Loop) AnalyzeABTest(testID string) (ABAnalysis, error) {
	l.mu.RLock()
	test, ok := l.tests[testID]
	if !ok {
		l.mu.RUnlock()
		return ABAnalysis{}, ErrABTestNotFound
	}
	statsA := variantStats(test.ModelA, append([]types.FeedbackData(nil), test.resultsA...))
	statsB := variantStats(test.ModelB, append([]types.FeedbackData(nil), test.resultsB...))
	l.mu.RUnlock()

	analysis := ABAnalysis{TestID: testID, VariantA: statsA, VariantB: statsB}

	if statsA.SampleSize < test.MinSamples || statsB.SampleSize < test.MinSamples {
		analysis.Recommendation = fmt.Sprintf(
			"insufficient data: need %d samples per variant, have %d (%s) and %d (%s)",
			test.MinSamples, statsA.SampleSize, statsA.ModelID, statsB.SampleSize, statsB.ModelID,
		)
		return analysis, nil
	}

	if statsB.AvgScore == 0 {
		analysis.Recommendation = "cannot compare: variant B has no scoreable feedback"
		return analysis, nil
	}

	relDiff := (statsA.AvgScore - statsB.AvgScore) / statsB.AvgScore
	analysis.ConfidencePct = relDiff * 100

	switch {
	case relDiff >= 0.05:
		analysis.Winner = statsA.ModelID
		analysis.Recommendation = fmt.Sprintf("%s outperforms %s by %.1f%%, recommend switching", statsA.ModelID, statsB.ModelID, analysis.ConfidencePct)
	case relDiff <= -0.05:
		analysis.Winner = statsB.ModelID
		analysis.Recommendation = fmt.Sprintf("%s outperforms %s by %.1f%%, recommend keeping current", statsB.ModelID, statsA.ModelID, -analysis.ConfidencePct)
	default:
		analysis.Recommendation = "no statistically meaningful difference, continue test or keep current model"
	}

	return analysis, nil
}
