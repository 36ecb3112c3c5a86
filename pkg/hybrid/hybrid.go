// Package hybrid implements the Hybrid/Parallel Strategy (spec §4.5):
// eligibility, parallel model selection, judge selection, parallel
// execution, and consensus, translated from the teacher's
// original Python HybridRouter.
package hybrid

import (
	"log/slog"
	"sort"

	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

// criticalTasks are task types that benefit from parallel execution
// regardless of the caller's explicit request, mirroring
// HybridRouter.CRITICAL_TASKS.
var criticalTasks = map[types.TaskType]bool{
	types.TaskSecurityAudit: true,
	types.TaskCodeReview:    true,
	types.TaskPlanning:      true,
	types.TaskReasoning:     true,
}

// defaultJudgeModelPreferences mirrors JUDGE_MODEL_PREFERENCES: a fixed
// order of preferred judge models, tried before falling back to
// highest-quality.
var defaultJudgeModelPreferences = []string{
	"claude-3-opus",
	"gpt-4o",
	"claude-3-5-sonnet",
	"o1",
}

// Strategy holds the hybrid router's configuration. The zero value
// uses the default judge preference list.
type Strategy struct {
	judgeModelPreferences []string
	logger                *slog.Logger
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithJudgeModelPreferences overrides the fixed judge preference list.
func WithJudgeModelPreferences(ids []string) Option {
	return func(s *Strategy) { s.judgeModelPreferences = ids }
}

// WithLogger injects the logger JudgeSelect reports judge failures
// through. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Strategy) { s.logger = logger }
}

// New creates a Strategy using the default judge preferences unless
// overridden.
func New(opts ...Option) *Strategy {
	s := &Strategy{judgeModelPreferences: defaultJudgeModelPreferences, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldUseParallel reports whether req warrants parallel execution,
// per should_use_parallel's four-way OR: explicit opt-in, critical task
// type, a high quality bar backed by sufficient budget, or a truthy
// metadata["critical"] flag.
func ShouldUseParallel(req types.RoutingRequest) bool {
	if req.EnableParallel {
		return true
	}
	if criticalTasks[req.TaskType] {
		return true
	}
	if req.QualityRequirement >= 0.9 {
		if req.CostBudget == nil || *req.CostBudget >= 0.05 {
			return true
		}
	}
	if req.MetadataCritical() {
		return true
	}
	return false
}

// filterCapable mirrors _filter_capable_models: enabled, meets the
// quality bar, has sufficient context window, and satisfies any
// explicit capability requirement.
func filterCapable(req types.RoutingRequest, models []types.ModelDefinition) []types.ModelDefinition {
	var out []types.ModelDefinition
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		if m.QualityScore < req.QualityRequirement {
			continue
		}
		if req.ContextSize > 0 && m.ContextWindow < req.ContextSize {
			continue
		}
		if req.RequiresTools && !m.HasCapability(types.CapabilityFunctionCalling) {
			continue
		}
		if req.RequiresVision && !m.HasCapability(types.CapabilityVision) {
			continue
		}
		if req.RequiresJSONMode && !m.HasCapability(types.CapabilityJSONMode) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// parallelScore mirrors _calculate_parallel_score: 50*quality +
// 20*cost_efficiency + 10*latency_efficiency + diversity_bonus +
// task_bonus.
func parallelScore(m types.ModelDefinition, req types.RoutingRequest) float64 {
	score := m.QualityScore * 50

	avgCost := (m.CostPer1KInput + m.CostPer1KOutput) / 2
	score += (1.0 / (1.0 + avgCost*100)) * 20

	if m.LatencyP50Ms != nil {
		score += (1.0 / (1.0 + *m.LatencyP50Ms/1000)) * 10
	}

	if req.VendorDiversity {
		score += 5
	}

	switch {
	case req.TaskType == types.TaskReasoning && m.HasCapability(types.CapabilityReasoning):
		score += 10
	case req.TaskType == types.TaskCodeGeneration && m.HasCapability(types.CapabilityCode):
		score += 10
	}

	return score
}

// SelectParallelModels selects up to n models for parallel dispatch,
// per select_parallel_models: capability-filter, score, then a
// two-pass greedy selection (one per provider first, then fill).
func SelectParallelModels(req types.RoutingRequest, candidates []types.ModelDefinition, n int) []types.ModelDefinition {
	capable := filterCapable(req, candidates)
	if len(capable) <= n {
		return capable
	}

	type scored struct {
		model types.ModelDefinition
		score float64
	}
	ranked := make([]scored, 0, len(capable))
	for _, m := range capable {
		ranked = append(ranked, scored{model: m, score: parallelScore(m, req)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	selected := make([]types.ModelDefinition, 0, n)
	usedProviders := make(map[types.Provider]bool)
	chosen := make(map[string]bool)

	for _, r := range ranked {
		if len(selected) >= n {
			break
		}
		if !usedProviders[r.model.Provider] {
			selected = append(selected, r.model)
			usedProviders[r.model.Provider] = true
			chosen[r.model.ID] = true
		}
	}
	for _, r := range ranked {
		if len(selected) >= n {
			break
		}
		if !chosen[r.model.ID] {
			selected = append(selected, r.model)
			chosen[r.model.ID] = true
		}
	}

	return selected
}

// SelectJudge chooses a model to evaluate parallel outputs, per
// select_judge_model: the fixed preference list first, then the
// highest-quality enabled model not already in the parallel set.
func (s *Strategy) SelectJudge(available, parallel []types.ModelDefinition) (types.ModelDefinition, bool) {
	parallelIDs := make(map[string]bool, len(parallel))
	for _, m := range parallel {
		parallelIDs[m.ID] = true
	}

	for _, judgeID := range s.judgeModelPreferences {
		for _, m := range available {
			if m.ID == judgeID && !parallelIDs[m.ID] && m.Enabled {
				return m, true
			}
		}
	}

	var best types.ModelDefinition
	found := false
	for _, m := range available {
		if parallelIDs[m.ID] || !m.Enabled {
			continue
		}
		if !found || m.QualityScore > best.QualityScore {
			best = m
			found = true
		}
	}
	return best, found
}

// CalculateCostQualityTradeoff analyzes the cost/quality profile of a
// parallel model set, per calculate_cost_quality_tradeoff.
type Tradeoff struct {
	NumModels           int
	ModelIDs            []string
	TotalCost           float64
	MaxQuality          float64
	AvgQuality          float64
	QualityImprovement  float64
	CostPerQualityPoint float64
	WithinBudget        bool
}

func CalculateCostQualityTradeoff(models []types.ModelDefinition, req types.RoutingRequest) Tradeoff {
	inputTokens := req.EstimatedInputTokens
	if inputTokens == 0 {
		inputTokens = 1000
	}
	outputTokens := req.EstimatedOutputTokens
	if outputTokens == 0 {
		outputTokens = 500
	}

	var totalCost, maxQuality, sumQuality float64
	ids := make([]string, 0, len(models))
	for _, m := range models {
		cost := (float64(inputTokens)/1000.0)*m.CostPer1KInput + (float64(outputTokens)/1000.0)*m.CostPer1KOutput
		totalCost += cost
		if m.QualityScore > maxQuality {
			maxQuality = m.QualityScore
		}
		sumQuality += m.QualityScore
		ids = append(ids, m.ID)
	}

	avgQuality := 0.0
	if len(models) > 0 {
		avgQuality = sumQuality / float64(len(models))
	}

	costPerQuality := 0.0
	if maxQuality > 0 {
		costPerQuality = totalCost / maxQuality
	}

	withinBudget := req.CostBudget == nil || totalCost <= *req.CostBudget

	return Tradeoff{
		NumModels:           len(models),
		ModelIDs:            ids,
		TotalCost:           totalCost,
		MaxQuality:          maxQuality,
		AvgQuality:          avgQuality,
		QualityImprovement:  maxQuality - avgQuality,
		CostPerQualityPoint: costPerQuality,
		WithinBudget:        withinBudget,
	}
}
