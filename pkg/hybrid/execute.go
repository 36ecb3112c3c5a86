package hybrid

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

// ProviderCallFn dispatches a single request to model and returns its
// raw response. The router never interprets the response; it is
// opaque and passed through unchanged to consensus/judge logic.
type ProviderCallFn func(ctx context.Context, model types.ModelDefinition) (any, error)

// Result is one parallel dispatch's outcome, per execute_parallel's
// (model, response, error) tuple.
type Result struct {
	Model    types.ModelDefinition
	Response any
	Err      error
}

// ExecuteOption configures a single ExecuteParallel call.
type ExecuteOption func(*executeConfig)

type executeConfig struct {
	limiter *rate.Limiter
}

// WithRateLimit gates each child dispatch behind limiter.Wait before
// calling callFn, bounding how fast a fanout hits downstream
// providers regardless of how many models are selected for the
// parallel set. A nil limiter (the default) applies no gating.
func WithRateLimit(limiter *rate.Limiter) ExecuteOption {
	return func(c *executeConfig) { c.limiter = limiter }
}

// ExecuteParallel dispatches callFn to every model concurrently,
// bounding each child by perChildTimeout, and collects every result
// (success or failure) — translating asyncio.gather/wait_for into
// goroutines plus context.WithTimeout and a WaitGroup.
func ExecuteParallel(ctx context.Context, models []types.ModelDefinition, callFn ProviderCallFn, perChildTimeout time.Duration, opts ...ExecuteOption) []Result {
	cfg := executeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make([]Result, len(models))

	var wg sync.WaitGroup
	wg.Add(len(models))

	for i, m := range models {
		go func(i int, m types.ModelDefinition) {
			defer wg.Done()

			if cfg.limiter != nil {
				if err := cfg.limiter.Wait(ctx); err != nil {
					results[i] = Result{Model: m, Err: err}
					return
				}
			}

			childCtx, cancel := context.WithTimeout(ctx, perChildTimeout)
			defer cancel()

			resp, err := callFn(childCtx, m)
			if err != nil && childCtx.Err() == context.DeadlineExceeded {
				err = types.NewTimeoutError(m.ID)
			}
			results[i] = Result{Model: m, Response: resp, Err: err}
		}(i, m)
	}

	wg.Wait()
	return results
}

// ConsensusStrategy selects how ApplyConsensus combines parallel
// results, mirroring the Python ConsensusStrategy enum.
type ConsensusStrategy string

const (
	ConsensusFirstSuccess     ConsensusStrategy = "first_success"
	ConsensusQualityWeighted  ConsensusStrategy = "quality_weighted"
	ConsensusVoting           ConsensusStrategy = "voting"
	ConsensusJudge            ConsensusStrategy = "judge"
)

func successful(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err == nil && r.Response != nil {
			out = append(out, r)
		}
	}
	return out
}

// ApplyConsensus selects a single winning result from results, per
// apply_consensus. Returns an AllParallelFailed RouterError when no
// child succeeded. ConsensusJudge, like any unrecognized strategy, is
// handled as ConsensusQualityWeighted here; judge-based selection goes
// through JudgeSelect, which falls back to quality_weighted on judge
// failure.
func ApplyConsensus(results []Result, strategy ConsensusStrategy) (Result, types.Evidence, error) {
	ok := successful(results)
	if len(ok) == 0 {
		return Result{}, types.Evidence{}, types.NewAllParallelFailedError("no successful parallel responses")
	}

	if len(ok) == 1 {
		r := ok[0]
		return r, types.Evidence{
			Source:      "hybrid",
			Description: "only successful response from " + r.Model.ID,
			Weight:      1.0,
		}, nil
	}

	switch strategy {
	case ConsensusFirstSuccess:
		r := ok[0]
		return r, types.Evidence{
			Source:      "hybrid",
			Description: "first successful response from " + r.Model.ID,
			Weight:      0.8,
		}, nil

	case ConsensusQualityWeighted:
		sort.SliceStable(ok, func(i, j int) bool { return ok[i].Model.QualityScore > ok[j].Model.QualityScore })
		r := ok[0]
		return r, types.Evidence{
			Source:      "hybrid",
			Description: "highest quality model " + r.Model.ID + " selected from parallel responses",
			Weight:      0.9,
		}, nil

	case ConsensusVoting:
		// Simplified majority voting over comparable outputs, matching
		// the original's own simplification: selects the first
		// successful response rather than comparing response content.
		r := ok[0]
		return r, types.Evidence{
			Source:      "hybrid",
			Description: "voting consensus selected " + r.Model.ID,
			Weight:      0.85,
		}, nil

	default:
		return ApplyConsensus(results, ConsensusQualityWeighted)
	}
}

// JudgeFn asks judgeModel to pick the best of responses, returning the
// index of the winning response and a rationale string.
type JudgeFn func(ctx context.Context, judgeModel types.ModelDefinition, responses []any) (selectedIndex int, rationale string, err error)

// JudgeSelect uses judgeModel to pick the best parallel result, per
// judge_responses. On judge failure it logs a JudgeError and falls
// back to ApplyConsensus(..., ConsensusQualityWeighted) rather than
// propagating the judge error, matching the original's
// except-and-fallback.
func (s *Strategy) JudgeSelect(ctx context.Context, judgeModel types.ModelDefinition, results []Result, judgeFn JudgeFn) (Result, types.Evidence, error) {
	ok := successful(results)
	if len(ok) == 0 {
		return Result{}, types.Evidence{}, types.NewAllParallelFailedError("no successful parallel responses to judge")
	}

	if len(ok) == 1 {
		r := ok[0]
		return r, types.Evidence{
			Source:      "hybrid",
			Description: "only response from " + r.Model.ID,
			Weight:      1.0,
		}, nil
	}

	responses := make([]any, len(ok))
	for i, r := range ok {
		responses[i] = r.Response
	}

	idx, rationale, err := judgeFn(ctx, judgeModel, responses)
	if err != nil || idx < 0 || idx >= len(ok) {
		var jerr *types.RouterError
		if err != nil {
			jerr = types.NewJudgeError("judge model " + judgeModel.ID + " failed: " + err.Error())
		} else {
			jerr = types.NewJudgeError("judge model " + judgeModel.ID + " returned an out-of-range selection")
		}
		s.logger.Warn("judge selection failed, falling back to quality-weighted consensus", "error", jerr)

		r, ev, fallbackErr := ApplyConsensus(results, ConsensusQualityWeighted)
		return r, ev, fallbackErr
	}

	winner := ok[idx]
	return winner, types.Evidence{
		Source:      "hybrid",
		Description: "judge model " + judgeModel.ID + " selected " + winner.Model.ID + ": " + rationale,
		Weight:      0.95,
	}, nil
}
