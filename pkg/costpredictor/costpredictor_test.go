package costpredictor_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/moerouter/pkg/costpredictor"
	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

func testModel() types.ModelDefinition {
	return types.ModelDefinition{
		ID:              "gpt-4o",
		CostPer1KInput:  0.005,
		CostPer1KOutput: 0.015,
	}
}

func TestPredict_ExplicitTokens_UsesTighterBounds(t *testing.T) {
	p := costpredictor.New()
	req := types.RoutingRequest{
		TaskType:              types.TaskGeneral,
		EstimatedInputTokens:  1000,
		EstimatedOutputTokens: 500,
	}

	est := p.Predict(testModel(), req)

	expected := (1000.0/1000.0)*0.005 + (500.0/1000.0)*0.015
	assert.InDelta(t, expected, est.ExpectedCost, 1e-9)
	assert.InDelta(t, expected*0.9, est.MinCost, 1e-9)
	assert.InDelta(t, expected*1.25, est.MaxCost, 1e-9)
}

func TestPredict_DerivedTokens_UsesWiderBounds(t *testing.T) {
	p := costpredictor.New()
	req := types.RoutingRequest{
		TaskType:        types.TaskCodeGeneration,
		TaskDescription: strings.Repeat("x", 1000),
	}

	est := p.Predict(testModel(), req)

	assert.InDelta(t, est.ExpectedCost*0.5, est.MinCost, 1e-9)
	assert.InDelta(t, est.ExpectedCost*2.0, est.MaxCost, 1e-9)
	assert.GreaterOrEqual(t, est.InputTokens, 100)
	assert.GreaterOrEqual(t, est.OutputTokens, 50)
}

func TestPredict_DerivedTokens_EnforcesFloors(t *testing.T) {
	p := costpredictor.New()
	req := types.RoutingRequest{
		TaskType:        types.TaskGeneral,
		TaskDescription: "short",
	}

	est := p.Predict(testModel(), req)

	assert.Equal(t, 100, est.InputTokens, "input token floor is 100")
	assert.Equal(t, 100, est.OutputTokens, "output is derived from the 100-token input floor at general's 1.0 expansion ratio")
}

func TestPredict_PartialExplicitTokens_DerivesMissingSide(t *testing.T) {
	p := costpredictor.New()
	req := types.RoutingRequest{
		TaskType:             types.TaskGeneral,
		TaskDescription:      strings.Repeat("x", 1000),
		EstimatedInputTokens: 1000,
	}

	est := p.Predict(testModel(), req)

	assert.Equal(t, 1000, est.InputTokens)
	assert.Greater(t, est.OutputTokens, 0, "missing output side must be derived, not left at zero")
	assert.InDelta(t, est.ExpectedCost*0.5, est.MinCost, 1e-9, "a partial estimate still uses the wider, non-explicit bounds")
	assert.InDelta(t, est.ExpectedCost*2.0, est.MaxCost, 1e-9)
}

func TestPredict_WithinBudget(t *testing.T) {
	p := costpredictor.New()
	budget := 0.01

	withinReq := types.RoutingRequest{EstimatedInputTokens: 100, EstimatedOutputTokens: 50, CostBudget: &budget}
	est := p.Predict(testModel(), withinReq)
	assert.True(t, est.WithinBudget)

	overReq := types.RoutingRequest{EstimatedInputTokens: 10000, EstimatedOutputTokens: 10000, CostBudget: &budget}
	est = p.Predict(testModel(), overReq)
	assert.False(t, est.WithinBudget)
}

func TestPredict_NoBudget_AlwaysWithinBudget(t *testing.T) {
	p := costpredictor.New()
	req := types.RoutingRequest{EstimatedInputTokens: 1000000, EstimatedOutputTokens: 1000000}
	est := p.Predict(testModel(), req)
	assert.True(t, est.WithinBudget)
}

func TestPredict_CostEfficiency_MonotonicDecreaseInCost(t *testing.T) {
	p := costpredictor.New()
	cheap := p.Predict(testModel(), types.RoutingRequest{EstimatedInputTokens: 10, EstimatedOutputTokens: 5})
	expensive := p.Predict(testModel(), types.RoutingRequest{EstimatedInputTokens: 100000, EstimatedOutputTokens: 100000})

	assert.Greater(t, cheap.CostEfficiency, expensive.CostEfficiency)
	assert.GreaterOrEqual(t, cheap.CostEfficiency, 0.0)
	assert.LessOrEqual(t, cheap.CostEfficiency, 1.0)
	assert.GreaterOrEqual(t, expensive.CostEfficiency, 0.0)
}

func TestWithTable_OverridesRatios(t *testing.T) {
	custom := map[types.TaskType]costpredictor.TokenRatio{
		types.TaskGeneral: {TokensPerCharInput: 1.0, ExpansionRatio: 1.0},
	}
	p := costpredictor.New(costpredictor.WithTable(custom))

	req := types.RoutingRequest{TaskType: types.TaskGeneral, TaskDescription: strings.Repeat("x", 1000)}
	est := p.Predict(testModel(), req)

	require.Equal(t, 1000, est.InputTokens)
	require.Equal(t, 1000, est.OutputTokens)
}
