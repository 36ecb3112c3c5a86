package routing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/moerouter/pkg/breaker"
	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
	"github.com/blueberrycongee/moerouter/pkg/registry"
	"github.com/blueberrycongee/moerouter/pkg/routing"
)

func f64(v float64) *float64 { return &v }
func budget(v float64) *float64 { return &v }

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]types.ModelDefinition{
		{
			ID: "gpt-4o", Provider: types.ProviderOpenAI, Enabled: true,
			QualityScore: 0.9, ContextWindow: 128000,
			CostPer1KInput: 0.005, CostPer1KOutput: 0.015,
			Capabilities: []types.Capability{types.CapabilityCode, types.CapabilityFunctionCalling},
			LatencyP50Ms: f64(800), LatencyP95Ms: f64(1500),
		},
		{
			ID: "claude-3-opus", Provider: types.ProviderAnthropic, Enabled: true,
			QualityScore: 0.95, ContextWindow: 200000,
			CostPer1KInput: 0.015, CostPer1KOutput: 0.075,
			Capabilities: []types.Capability{types.CapabilityReasoning},
			LatencyP50Ms: f64(1200), LatencyP95Ms: f64(2500),
		},
		{
			ID: "mistral-small", Provider: types.ProviderMistral, Enabled: true,
			QualityScore: 0.6, ContextWindow: 32000,
			CostPer1KInput: 0.0002, CostPer1KOutput: 0.0006,
		},
		{
			ID: "disabled-model", Provider: types.ProviderCohere, Enabled: false,
			QualityScore: 0.99, ContextWindow: 100000,
		},
	})
	require.NoError(t, err)
	return reg
}

func TestSelectModel_FiltersDisabledAndBelowQualityBar(t *testing.T) {
	router := routing.New(testRegistry(t))
	decision := router.SelectModel(types.RoutingRequest{TaskType: types.TaskGeneral, QualityRequirement: 0.7})

	assert.NotEqual(t, "disabled-model", decision.SelectedModel)
	assert.NotEqual(t, "mistral-small", decision.SelectedModel, "below the 0.7 quality bar")
}

func TestSelectModel_EmptyResultWhenNoCandidateSurvives(t *testing.T) {
	router := routing.New(testRegistry(t))
	decision := router.SelectModel(types.RoutingRequest{TaskType: types.TaskGeneral, QualityRequirement: 0.999})

	assert.Equal(t, types.NoneModel, decision.SelectedModel)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.Contains(t, decision.Rationale, "no eligible models")
}

func TestSelectModel_CostBudgetExcludesExpensiveModel(t *testing.T) {
	router := routing.New(testRegistry(t))
	decision := router.SelectModel(types.RoutingRequest{
		TaskType:              types.TaskGeneral,
		EstimatedInputTokens:  1000,
		EstimatedOutputTokens: 500,
		CostBudget:            budget(0.001),
	})

	assert.Equal(t, "mistral-small", decision.SelectedModel, "only the cheap model fits a tight budget")
}

func TestSelectModel_VendorPreferenceRestrictsCandidates(t *testing.T) {
	router := routing.New(testRegistry(t))
	pref := types.ProviderAnthropic
	decision := router.SelectModel(types.RoutingRequest{TaskType: types.TaskGeneral, VendorPreference: &pref})

	assert.Equal(t, "claude-3-opus", decision.SelectedModel)
}

func TestSelectModel_OpenCircuitExcludesProvider(t *testing.T) {
	breakers := breaker.NewRegistry(breaker.Config{FailureThreshold: 1, HalfOpenSuccessRequired: 1, OpenDuration: time.Hour})
	breakers.RecordFailure(string(types.ProviderAnthropic))

	router := routing.New(testRegistry(t), routing.WithBreakers(breakers))
	decision := router.SelectModel(types.RoutingRequest{TaskType: types.TaskGeneral})

	assert.NotEqual(t, "claude-3-opus", decision.SelectedModel, "open breaker removes the provider's only model")
}

func TestSelectModel_ParallelStrategyForCriticalTaskType(t *testing.T) {
	router := routing.New(testRegistry(t))
	decision := router.SelectModel(types.RoutingRequest{TaskType: types.TaskSecurityAudit})

	assert.Equal(t, types.StrategyParallel, decision.RoutingStrategy)
	assert.GreaterOrEqual(t, len(decision.ParallelModels), 2)
}

func TestSelectModel_FallbackChainExcludesSelected(t *testing.T) {
	router := routing.New(testRegistry(t))
	decision := router.SelectModel(types.RoutingRequest{TaskType: types.TaskGeneral})

	for _, id := range decision.FallbackModels {
		assert.NotEqual(t, decision.SelectedModel, id)
	}
	assert.LessOrEqual(t, len(decision.FallbackModels), 3)
}

func TestRecordOutcome_FansOutToTrackerAndBreaker(t *testing.T) {
	breakers := breaker.NewRegistry(breaker.Config{FailureThreshold: 1, HalfOpenSuccessRequired: 1, OpenDuration: time.Hour})
	router := routing.New(testRegistry(t), routing.WithBreakers(breakers))

	router.RecordOutcome("claude-3-opus", types.TaskGeneral, false, nil, nil, nil, nil)
	assert.Equal(t, breaker.StateOpen, breakers.For(string(types.ProviderAnthropic)).State())
}

func TestRecordFeedback_UpdatesLearningWeight(t *testing.T) {
	router := routing.New(testRegistry(t))
	router.RecordFeedback(types.FeedbackData{ModelID: "gpt-4o", TaskType: types.TaskGeneral, Outcome: types.OutcomeSuccess}, nil)

	report := router.GetModelPerformanceReport("gpt-4o", types.TaskGeneral)
	assert.Greater(t, report.LearnedWeight, 0.5)
}
