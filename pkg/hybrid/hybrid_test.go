package hybrid_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/blueberrycongee/moerouter/pkg/hybrid"
	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

func budget(v float64) *float64 { return &v }

func TestShouldUseParallel_ExplicitOptIn(t *testing.T) {
	req := types.RoutingRequest{EnableParallel: true, TaskType: types.TaskGeneral}
	assert.True(t, hybrid.ShouldUseParallel(req))
}

func TestShouldUseParallel_CriticalTaskType(t *testing.T) {
	req := types.RoutingRequest{TaskType: types.TaskSecurityAudit}
	assert.True(t, hybrid.ShouldUseParallel(req))

	req = types.RoutingRequest{TaskType: types.TaskDocumentation}
	assert.False(t, hybrid.ShouldUseParallel(req))
}

func TestShouldUseParallel_HighQualityWithBudget(t *testing.T) {
	req := types.RoutingRequest{TaskType: types.TaskGeneral, QualityRequirement: 0.95, CostBudget: budget(0.1)}
	assert.True(t, hybrid.ShouldUseParallel(req))

	req = types.RoutingRequest{TaskType: types.TaskGeneral, QualityRequirement: 0.95, CostBudget: budget(0.01)}
	assert.False(t, hybrid.ShouldUseParallel(req), "high quality bar without sufficient budget must not trigger parallel")

	req = types.RoutingRequest{TaskType: types.TaskGeneral, QualityRequirement: 0.95, CostBudget: nil}
	assert.True(t, hybrid.ShouldUseParallel(req), "absent budget is treated as sufficient")
}

func TestShouldUseParallel_MetadataCritical(t *testing.T) {
	req := types.RoutingRequest{TaskType: types.TaskGeneral, Metadata: map[string]string{"critical": "true"}}
	assert.True(t, hybrid.ShouldUseParallel(req))
}

func TestShouldUseParallel_DefaultFalse(t *testing.T) {
	req := types.RoutingRequest{TaskType: types.TaskGeneral}
	assert.False(t, hybrid.ShouldUseParallel(req))
}

func candidateModels() []types.ModelDefinition {
	return []types.ModelDefinition{
		{ID: "gpt-4o", Provider: types.ProviderOpenAI, Enabled: true, QualityScore: 0.9, Capabilities: []types.Capability{types.CapabilityCode}},
		{ID: "claude-3-opus", Provider: types.ProviderAnthropic, Enabled: true, QualityScore: 0.95, Capabilities: []types.Capability{types.CapabilityReasoning}},
		{ID: "gemini-1-5-pro", Provider: types.ProviderGoogle, Enabled: true, QualityScore: 0.85, Capabilities: []types.Capability{types.CapabilityReasoning}},
		{ID: "mistral-large", Provider: types.ProviderMistral, Enabled: true, QualityScore: 0.8, Capabilities: []types.Capability{types.CapabilityCode}},
		{ID: "disabled-model", Provider: types.ProviderCohere, Enabled: false, QualityScore: 0.99},
	}
}

func TestSelectParallelModels_ReturnsAllWhenUnderLimit(t *testing.T) {
	req := types.RoutingRequest{TaskType: types.TaskGeneral}
	models := candidateModels()[:2]

	selected := hybrid.SelectParallelModels(req, models, 5)
	assert.Len(t, selected, 2)
}

func TestSelectParallelModels_PrefersProviderDiversity(t *testing.T) {
	req := types.RoutingRequest{TaskType: types.TaskGeneral, VendorDiversity: true}
	selected := hybrid.SelectParallelModels(req, candidateModels(), 3)

	require.Len(t, selected, 3)
	seen := make(map[types.Provider]int)
	for _, m := range selected {
		seen[m.Provider]++
	}
	assert.Len(t, seen, 3, "first pass must choose one model per distinct provider before any provider repeats")
}

func TestSelectParallelModels_ExcludesDisabledAndBelowQualityBar(t *testing.T) {
	req := types.RoutingRequest{TaskType: types.TaskGeneral, QualityRequirement: 0.99}
	selected := hybrid.SelectParallelModels(req, candidateModels(), 3)
	assert.Empty(t, selected, "no enabled model meets a 0.99 quality bar")
}

func TestSelectJudge_ExcludesParallelSet(t *testing.T) {
	s := hybrid.New()
	available := candidateModels()
	parallel := available[:2]

	judge, ok := s.SelectJudge(available, parallel)
	require.True(t, ok)
	assert.NotEqual(t, "gpt-4o", judge.ID, "gpt-4o is in the parallel set and must be excluded")
}

func TestSelectJudge_FallsBackToHighestQuality(t *testing.T) {
	s := hybrid.New(hybrid.WithJudgeModelPreferences([]string{"nonexistent-model"}))
	available := candidateModels()
	parallel := []types.ModelDefinition{available[1]} // claude-3-opus, highest quality

	judge, ok := s.SelectJudge(available, parallel)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", judge.ID, "highest quality remaining enabled model after excluding parallel set")
}

func TestExecuteParallel_CollectsAllResults(t *testing.T) {
	models := candidateModels()[:3]
	callFn := func(ctx context.Context, m types.ModelDefinition) (any, error) {
		if m.ID == "claude-3-opus" {
			return nil, errors.New("boom")
		}
		return "response-" + m.ID, nil
	}

	results := hybrid.ExecuteParallel(context.Background(), models, callFn, time.Second)
	require.Len(t, results, 3)

	var failures int
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestExecuteParallel_PerChildTimeout(t *testing.T) {
	models := candidateModels()[:1]
	callFn := func(ctx context.Context, m types.ModelDefinition) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
			return "too slow", nil
		}
	}

	results := hybrid.ExecuteParallel(context.Background(), models, callFn, 10*time.Millisecond)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)

	var rerr *types.RouterError
	require.ErrorAs(t, results[0].Err, &rerr)
	assert.Equal(t, types.KindTimeoutError, rerr.Kind)
}

func TestExecuteParallel_RateLimitDelaysDispatch(t *testing.T) {
	models := candidateModels()[:2]
	var calls []time.Time
	var mu sync.Mutex
	callFn := func(ctx context.Context, m types.ModelDefinition) (any, error) {
		mu.Lock()
		calls = append(calls, time.Now())
		mu.Unlock()
		return "ok", nil
	}

	limiter := rate.NewLimiter(rate.Every(50*time.Millisecond), 1)
	results := hybrid.ExecuteParallel(context.Background(), models, callFn, time.Second, hybrid.WithRateLimit(limiter))

	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	require.Len(t, calls, 2)
	assert.WithinDuration(t, calls[0].Add(50*time.Millisecond), calls[1], 30*time.Millisecond, "second dispatch must wait for the limiter to refill its single token")
}

func TestApplyConsensus_NoSuccesses(t *testing.T) {
	results := []hybrid.Result{{Model: types.ModelDefinition{ID: "a"}, Err: errors.New("fail")}}
	_, _, err := hybrid.ApplyConsensus(results, hybrid.ConsensusQualityWeighted)
	require.Error(t, err)

	var rerr *types.RouterError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, types.KindAllParallelFailed, rerr.Kind)
}

func TestApplyConsensus_SingleSuccessShortCircuits(t *testing.T) {
	results := []hybrid.Result{
		{Model: types.ModelDefinition{ID: "a"}, Response: "r1"},
		{Model: types.ModelDefinition{ID: "b"}, Err: errors.New("fail")},
	}
	winner, ev, err := hybrid.ApplyConsensus(results, hybrid.ConsensusFirstSuccess)
	require.NoError(t, err)
	assert.Equal(t, "a", winner.Model.ID)
	assert.Equal(t, 1.0, ev.Weight)
}

func TestApplyConsensus_QualityWeightedPicksHighestQuality(t *testing.T) {
	results := []hybrid.Result{
		{Model: types.ModelDefinition{ID: "low", QualityScore: 0.5}, Response: "r1"},
		{Model: types.ModelDefinition{ID: "high", QualityScore: 0.95}, Response: "r2"},
	}
	winner, ev, err := hybrid.ApplyConsensus(results, hybrid.ConsensusQualityWeighted)
	require.NoError(t, err)
	assert.Equal(t, "high", winner.Model.ID)
	assert.Equal(t, 0.9, ev.Weight)
}

func TestJudgeSelect_UsesJudgeFnVerdict(t *testing.T) {
	results := []hybrid.Result{
		{Model: types.ModelDefinition{ID: "a"}, Response: "r1"},
		{Model: types.ModelDefinition{ID: "b"}, Response: "r2"},
	}
	judgeFn := func(ctx context.Context, judge types.ModelDefinition, responses []any) (int, string, error) {
		return 1, "b is more complete", nil
	}

	winner, ev, err := hybrid.New().JudgeSelect(context.Background(), types.ModelDefinition{ID: "judge"}, results, judgeFn)
	require.NoError(t, err)
	assert.Equal(t, "b", winner.Model.ID)
	assert.Equal(t, 0.95, ev.Weight)
}

func TestJudgeSelect_FallsBackOnJudgeFailure(t *testing.T) {
	results := []hybrid.Result{
		{Model: types.ModelDefinition{ID: "a", QualityScore: 0.6}, Response: "r1"},
		{Model: types.ModelDefinition{ID: "b", QualityScore: 0.9}, Response: "r2"},
	}
	judgeFn := func(ctx context.Context, judge types.ModelDefinition, responses []any) (int, string, error) {
		return 0, "", errors.New("judge crashed")
	}

	winner, _, err := hybrid.New().JudgeSelect(context.Background(), types.ModelDefinition{ID: "judge"}, results, judgeFn)
	require.NoError(t, err, "judge failure falls back to quality_weighted rather than propagating")
	assert.Equal(t, "b", winner.Model.ID)
}

func TestCalculateCostQualityTradeoff(t *testing.T) {
	models := []types.ModelDefinition{
		{ID: "a", QualityScore: 0.8, CostPer1KInput: 0.005, CostPer1KOutput: 0.015},
		{ID: "b", QualityScore: 0.9, CostPer1KInput: 0.01, CostPer1KOutput: 0.03},
	}
	req := types.RoutingRequest{EstimatedInputTokens: 1000, EstimatedOutputTokens: 500}

	tr := hybrid.CalculateCostQualityTradeoff(models, req)
	assert.Equal(t, 2, tr.NumModels)
	assert.Equal(t, 0.9, tr.MaxQuality)
	assert.InDelta(t, 0.85, tr.AvgQuality, 1e-9)
	assert.True(t, tr.WithinBudget, "no budget supplied means always within budget")
}
