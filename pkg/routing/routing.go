// Package routing implements the Router Core (spec §4.7): the single
// entry point that turns a RoutingRequest into a Decision by
// orchestrating the Model Registry, Cost Predictor, Performance
// Tracker, Circuit Breaker, Hybrid Strategy and Learning Loop.
package routing

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/blueberrycongee/moerouter/pkg/breaker"
	"github.com/blueberrycongee/moerouter/pkg/costpredictor"
	"github.com/blueberrycongee/moerouter/pkg/hybrid"
	"github.com/blueberrycongee/moerouter/pkg/learning"
	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
	"github.com/blueberrycongee/moerouter/pkg/registry"
	"github.com/blueberrycongee/moerouter/pkg/telemetry"
	"github.com/blueberrycongee/moerouter/pkg/tracker"
)

// Weights are the Router Core's scoring coefficients, per spec §4.7
// Step 3. The zero value is invalid; use DefaultWeights.
type Weights struct {
	Quality     float64 // w_q
	Cost        float64 // w_c
	Latency     float64 // w_l
	TaskPref    float64 // w_p
	Performance float64 // w_t
	Learning    float64 // w_e
	Diversity   float64 // w_d
}

// DefaultWeights returns the spec's stated defaults.
func DefaultWeights() Weights {
	return Weights{
		Quality:     0.30,
		Cost:        0.20,
		Latency:     0.10,
		TaskPref:    0.10,
		Performance: 0.15,
		Learning:    0.15,
		Diversity:   0.05,
	}
}

// RegistrySource is the read contract the Router Core needs from the
// Model Registry. *registry.Registry satisfies it directly; use
// WithRegistryManager to route against a *registry.Manager's live
// snapshot.
type RegistrySource interface {
	Enabled() []types.ModelDefinition
	Get(modelID string) (types.ModelDefinition, bool)
	TaskPreferences(taskType types.TaskType) []types.ModelDefinition
	PrefersModel(taskType types.TaskType, m types.ModelDefinition) bool
}

// maxFallbacks bounds Decision.FallbackModels, per spec §4.7 Step 5.
const maxFallbacks = 3

// Router is the Router Core. The zero value is not usable; use New.
type Router struct {
	registrySource func() RegistrySource
	predictor      *costpredictor.Predictor
	tracker        *tracker.Tracker
	breakers       *breaker.Registry
	learning       *learning.Loop
	hybrid         *hybrid.Strategy
	telemetry      telemetry.Sink
	weights        Weights
	logger         *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithRegistry fixes the Router against a single immutable Registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Router) { r.registrySource = func() RegistrySource { return reg } }
}

// WithRegistryManager routes every call against manager's live
// snapshot, picking up hot-reloaded model catalogues automatically.
func WithRegistryManager(manager *registry.Manager) Option {
	return func(r *Router) { r.registrySource = func() RegistrySource { return manager.Get() } }
}

// WithPredictor injects a Cost Predictor. Defaults to costpredictor.New().
func WithPredictor(p *costpredictor.Predictor) Option {
	return func(r *Router) { r.predictor = p }
}

// WithTracker injects a Performance Tracker. Defaults to tracker.New().
func WithTracker(t *tracker.Tracker) Option {
	return func(r *Router) { r.tracker = t }
}

// WithBreakers injects a Circuit Breaker registry. Defaults to
// breaker.NewRegistry(breaker.DefaultConfig()).
func WithBreakers(b *breaker.Registry) Option {
	return func(r *Router) { r.breakers = b }
}

// WithLearning injects a Learning Loop. Defaults to learning.New().
func WithLearning(l *learning.Loop) Option {
	return func(r *Router) { r.learning = l }
}

// WithHybrid injects a Hybrid Strategy. Defaults to hybrid.New().
func WithHybrid(h *hybrid.Strategy) Option {
	return func(r *Router) { r.hybrid = h }
}

// WithTelemetry injects a telemetry sink. Defaults to telemetry.Noop{}.
func WithTelemetry(s telemetry.Sink) Option {
	return func(r *Router) { r.telemetry = s }
}

// WithWeights overrides the Step-3 scoring weights.
func WithWeights(w Weights) Option {
	return func(r *Router) { r.weights = w }
}

// WithLogger injects a logger, defaulting to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// New creates a Router from reg plus any overrides.
func New(reg *registry.Registry, opts ...Option) *Router {
	r := &Router{
		registrySource: func() RegistrySource { return reg },
		predictor:      costpredictor.New(),
		tracker:        tracker.New(),
		breakers:       breaker.NewRegistry(breaker.DefaultConfig()),
		learning:       learning.New(),
		hybrid:         hybrid.New(),
		telemetry:      telemetry.Noop{},
		weights:        DefaultWeights(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.breakers.OnTransition(func(provider string, from, to breaker.State) {
		r.telemetry.RecordBreakerTransition(provider, from, to)
	})
	r.learning.SetTelemetry(r.telemetry)

	return r
}

type scoredCandidate struct {
	model    types.ModelDefinition
	estimate costpredictor.Estimate
	score    float64
}

// SelectModel runs spec §4.7 Steps 1-6 and returns a Decision. It
// never returns an error: an empty candidate set after filtering
// yields Decision{SelectedModel: types.NoneModel}.
func (r *Router) SelectModel(req types.RoutingRequest) types.Decision {
	reg := r.registrySource()
	candidates := r.hardFilter(reg, req)

	surviving, shadowReasons := r.costFilter(candidates, req)
	if len(surviving) == 0 {
		decision := types.Decision{
			SelectedModel:   types.NoneModel,
			RoutingStrategy: types.StrategySingle,
			Confidence:      0,
			Rationale:       "no eligible models: " + topReasons(shadowReasons),
		}
		r.telemetry.RecordSelection(types.NoneModel, string(types.StrategySingle))
		return decision
	}

	ranked := r.score(reg, surviving, req)

	top := ranked[0]
	decision := types.Decision{
		SelectedModel:    top.model.ID,
		EstimatedCost:    top.estimate.ExpectedCost,
		EstimatedQuality: top.model.QualityScore,
		Confidence:       confidence(ranked, r.weights),
		Evidence:         evidenceFor(top, r.weights),
	}

	if hybrid.ShouldUseParallel(req) {
		models := make([]types.ModelDefinition, len(ranked))
		for i, c := range ranked {
			models[i] = c.model
		}
		n := 3
		parallelModels := hybrid.SelectParallelModels(req, models, n)
		if len(parallelModels) > 1 {
			decision.RoutingStrategy = types.StrategyParallel
			decision.ParallelModels = make([]string, len(parallelModels))
			for i, m := range parallelModels {
				decision.ParallelModels[i] = m.ID
			}
			tradeoff := hybrid.CalculateCostQualityTradeoff(parallelModels, req)
			decision.EstimatedCost = tradeoff.TotalCost
			decision.EstimatedQuality = tradeoff.MaxQuality
			decision.Evidence = append(decision.Evidence, types.Evidence{
				Source:      "hybrid",
				Description: "parallel dispatch across " + joinIDs(decision.ParallelModels),
				Weight:      0.9,
			})
		} else {
			decision.RoutingStrategy = types.StrategySingle
		}
	} else {
		decision.RoutingStrategy = types.StrategySingle
	}

	decision.FallbackModels = fallbackChain(ranked, top, req)
	decision.Rationale = rationale(top, decision)

	r.telemetry.RecordSelection(decision.SelectedModel, string(decision.RoutingStrategy))
	return decision
}

// hardFilter applies spec §4.7 Step 1.
func (r *Router) hardFilter(reg RegistrySource, req types.RoutingRequest) []types.ModelDefinition {
	var out []types.ModelDefinition
	for _, m := range reg.Enabled() {
		if m.QualityScore < req.QualityRequirement {
			continue
		}

		estimate := r.predictor.Predict(m, req)
		required := req.ContextSize
		tokenSum := estimate.InputTokens + estimate.OutputTokens
		if tokenSum > required {
			required = tokenSum
		}
		if m.ContextWindow < required {
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
		if req.RequiresStreaming && !m.HasCapability(types.CapabilityStreaming) {
			continue
		}

		if req.LatencyRequirementMs != nil && m.LatencyP95Ms != nil && *m.LatencyP95Ms > float64(*req.LatencyRequirementMs) {
			continue
		}

		if req.VendorPreference != nil && m.Provider != *req.VendorPreference {
			continue
		}

		if !r.breakers.IsAvailable(string(m.Provider)) {
			continue
		}

		out = append(out, m)
	}
	return out
}

// costFilter applies spec §4.7 Step 2, returning surviving candidates
// paired with their estimate and, separately, the reasons every
// dropped candidate was shadow-listed for rationale purposes.
func (r *Router) costFilter(candidates []types.ModelDefinition, req types.RoutingRequest) ([]scoredCandidate, []string) {
	var surviving []scoredCandidate
	var shadow []string

	for _, m := range candidates {
		estimate := r.predictor.Predict(m, req)
		if req.CostBudget != nil && estimate.ExpectedCost > *req.CostBudget {
			shadow = append(shadow, m.ID+" exceeds cost budget")
			continue
		}
		surviving = append(surviving, scoredCandidate{model: m, estimate: estimate})
	}

	if len(surviving) == 0 && len(candidates) == 0 {
		shadow = append(shadow, "no model passed the hard filter")
	}

	return surviving, shadow
}

// score applies spec §4.7 Step 3 and returns candidates ranked
// highest score first, tie-broken by quality, then lower expected
// cost, then lexical id.
func (r *Router) score(reg RegistrySource, candidates []scoredCandidate, req types.RoutingRequest) []scoredCandidate {
	for i := range candidates {
		candidates[i].score = r.scoreOne(reg, candidates[i], req)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.model.QualityScore != b.model.QualityScore {
			return a.model.QualityScore > b.model.QualityScore
		}
		if a.estimate.ExpectedCost != b.estimate.ExpectedCost {
			return a.estimate.ExpectedCost < b.estimate.ExpectedCost
		}
		return a.model.ID < b.model.ID
	})

	return candidates
}

func (r *Router) scoreOne(reg RegistrySource, c scoredCandidate, req types.RoutingRequest) float64 {
	w := r.weights

	taskPreferenceBias := 0.0
	if reg.PrefersModel(req.TaskType, c.model) {
		taskPreferenceBias = 1.0
	}

	latencyEfficiency := 0.5
	if c.model.LatencyP50Ms != nil {
		latencyEfficiency = 1.0 / (1.0 + *c.model.LatencyP50Ms/1000.0)
	}

	performanceWeight := r.tracker.RecommendationWeight(c.model.ID, req.TaskType)
	learningWeight := r.learning.Weight(c.model.ID, req.TaskType)

	diversityBonus := 0.0
	if req.VendorDiversity {
		diversityBonus = 1.0
	}

	return w.Quality*c.model.QualityScore +
		w.Cost*c.estimate.CostEfficiency +
		w.Latency*latencyEfficiency +
		w.TaskPref*taskPreferenceBias +
		w.Performance*performanceWeight +
		w.Learning*learningWeight +
		w.Diversity*diversityBonus
}

// confidence is spec §4.7 Step 6: clamp01(score_top / score_ideal),
// where score_ideal is the maximum achievable score given the
// configured weights (every normalized-[0,1] component at its max).
func confidence(ranked []scoredCandidate, w Weights) float64 {
	if len(ranked) == 0 {
		return 0
	}
	scoreIdeal := w.Quality + w.Cost + w.Latency + w.TaskPref + w.Performance + w.Learning + w.Diversity
	if scoreIdeal <= 0 {
		return 0
	}
	c := ranked[0].score / scoreIdeal
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func evidenceFor(c scoredCandidate, w Weights) []types.Evidence {
	return []types.Evidence{
		{
			Source:      "registry",
			Description: c.model.ID + " quality score " + formatFloat(c.model.QualityScore),
			Weight:      w.Quality,
		},
		{
			Source:      "costpredictor",
			Description: c.model.ID + " expected cost " + formatFloat(c.estimate.ExpectedCost),
			Weight:      w.Cost,
		},
	}
}

// fallbackChain takes up to maxFallbacks of the next-ranked
// candidates after top, excluding any sharing top's provider when
// vendor diversity was requested and a distinct provider remains
// available, per spec §4.7 Step 5.
func fallbackChain(ranked []scoredCandidate, top scoredCandidate, req types.RoutingRequest) []string {
	var distinctProviderAvailable bool
	for _, c := range ranked[1:] {
		if c.model.Provider != top.model.Provider {
			distinctProviderAvailable = true
			break
		}
	}

	var out []string
	for _, c := range ranked[1:] {
		if len(out) >= maxFallbacks {
			break
		}
		if c.model.ID == top.model.ID {
			continue
		}
		if req.VendorDiversity && distinctProviderAvailable && c.model.Provider == top.model.Provider {
			continue
		}
		out = append(out, c.model.ID)
	}
	return out
}

func rationale(top scoredCandidate, decision types.Decision) string {
	if decision.RoutingStrategy == types.StrategyParallel {
		return "parallel dispatch across " + joinIDs(decision.ParallelModels) + " via consensus"
	}
	return "selected " + top.model.ID + " (quality=" + formatFloat(top.model.QualityScore) +
		", expected_cost=" + formatFloat(top.estimate.ExpectedCost) + ")"
}

func topReasons(reasons []string) string {
	const maxReasons = 3
	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}
	return joinIDs(reasons)
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
