// Package costpredictor implements the Cost Predictor (spec §4.2): a
// purely functional cost forecast with explicit uncertainty bounds for
// a single (model, request) pair.
package costpredictor

import (
	"github.com/patrickmn/go-cache"

	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

// TokenRatio is the (tokens-per-char, expansion-ratio) pair used to
// derive token counts from a task_description's length when the
// caller doesn't supply explicit estimates.
type TokenRatio struct {
	TokensPerCharInput float64
	ExpansionRatio     float64
}

// defaultTable is grounded on the teacher's pkg/pricing.DefaultPricing
// wildcard-table pattern: a package-level map keyed by a closed
// vocabulary, with sensible fallbacks for anything not listed.
var defaultTable = map[types.TaskType]TokenRatio{
	types.TaskCodeGeneration: {TokensPerCharInput: 0.35, ExpansionRatio: 1.5},
	types.TaskCodeReview:     {TokensPerCharInput: 0.35, ExpansionRatio: 0.6},
	types.TaskPlanning:       {TokensPerCharInput: 0.3, ExpansionRatio: 1.2},
	types.TaskReasoning:      {TokensPerCharInput: 0.3, ExpansionRatio: 1.8},
	types.TaskSecurityAudit:  {TokensPerCharInput: 0.35, ExpansionRatio: 1.0},
	types.TaskDocumentation:  {TokensPerCharInput: 0.3, ExpansionRatio: 2.0},
	types.TaskToolUse:        {TokensPerCharInput: 0.3, ExpansionRatio: 0.8},
	types.TaskLongContext:    {TokensPerCharInput: 0.3, ExpansionRatio: 0.5},
	types.TaskGeneral:        {TokensPerCharInput: 0.3, ExpansionRatio: 1.0},
}

// Predictor forecasts dispatch cost. The zero value is not usable; use
// New.
type Predictor struct {
	table *cache.Cache
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithTable overrides the token ratios of the task types present in
// table; task types absent from it keep their default ratios.
func WithTable(table map[types.TaskType]TokenRatio) Option {
	return func(p *Predictor) {
		for k, v := range table {
			p.table.Set(string(k), v, cache.NoExpiration)
		}
	}
}

// New creates a Predictor seeded with the default token ratio table.
func New(opts ...Option) *Predictor {
	p := &Predictor{table: cache.New(cache.NoExpiration, cache.NoExpiration)}
	for k, v := range defaultTable {
		p.table.Set(string(k), v, cache.NoExpiration)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Predictor) ratioFor(taskType types.TaskType) TokenRatio {
	if v, ok := p.table.Get(string(taskType)); ok {
		return v.(TokenRatio)
	}
	return defaultTable[types.TaskGeneral]
}

// Estimate is the Cost Predictor's output for a single (model, request)
// pair.
type Estimate struct {
	InputTokens  int
	OutputTokens int

	MinCost      float64
	ExpectedCost float64
	MaxCost      float64

	WithinBudget    bool
	CostEfficiency  float64
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

// Predict forecasts the cost of dispatching req to model, per spec
// §4.2's five-step algorithm. Purely functional; cannot fail on
// well-typed inputs.
func (p *Predictor) Predict(model types.ModelDefinition, req types.RoutingRequest) Estimate {
	// explicit tracks whether the caller pinned down both sides of the
	// token count; it gates which uncertainty bounds apply (step 3).
	// A request supplying only one side still gets the other derived
	// from the task-type ratio table rather than left at zero.
	explicit := req.EstimatedInputTokens > 0 && req.EstimatedOutputTokens > 0

	ratio := p.ratioFor(req.TaskType)
	chars := float64(len(req.TaskDescription))

	inputTokens := req.EstimatedInputTokens
	if inputTokens <= 0 {
		inputTokens = maxInt(100, int(chars*ratio.TokensPerCharInput))
	}
	outputTokens := req.EstimatedOutputTokens
	if outputTokens <= 0 {
		outputTokens = maxInt(50, int(float64(inputTokens)*ratio.ExpansionRatio))
	}

	expected := (float64(inputTokens)/1000.0)*model.CostPer1KInput + (float64(outputTokens)/1000.0)*model.CostPer1KOutput

	var minCost, maxCost float64
	if explicit {
		minCost = expected * 0.9
		maxCost = expected * 1.25
	} else {
		minCost = expected * 0.5
		maxCost = expected * 2.0
	}

	withinBudget := req.CostBudget == nil || expected <= *req.CostBudget

	return Estimate{
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		MinCost:        minCost,
		ExpectedCost:   expected,
		MaxCost:        maxCost,
		WithinBudget:   withinBudget,
		CostEfficiency: clamp01(1 / (1 + expected*10)),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
