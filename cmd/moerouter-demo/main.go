// Command moerouter-demo wires every router component end to end
// against a small in-memory model catalogue: a single-model selection,
// a feedback round-trip, and a parallel/consensus dispatch. It is a
// demonstration caller, not part of the core (spec §6: "no CLI...
// owned by the core").
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/blueberrycongee/moerouter/pkg/hybrid"
	"github.com/blueberrycongee/moerouter/pkg/moerouter"
	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

const sampleCatalogue = `
models:
  - id: gpt-4o
    provider: openai
    capabilities: [code, function_calling, json_mode, streaming]
    cost_per_1k_input: 0.005
    cost_per_1k_output: 0.015
    context_window: 128000
    max_output_tokens: 16384
    quality_score: 0.88
    latency_p50_ms: 900
    latency_p95_ms: 2200
    supports_streaming: true
    supports_system_prompt: true
    enabled: true
  - id: claude-3-opus
    provider: anthropic
    capabilities: [reasoning, code, long_context, vision]
    cost_per_1k_input: 0.015
    cost_per_1k_output: 0.075
    context_window: 200000
    max_output_tokens: 4096
    quality_score: 0.95
    latency_p50_ms: 1400
    latency_p95_ms: 3500
    supports_streaming: true
    supports_system_prompt: true
    enabled: true
  - id: gpt-4o-mini
    provider: openai
    capabilities: [code, json_mode]
    cost_per_1k_input: 0.00015
    cost_per_1k_output: 0.0006
    context_window: 128000
    max_output_tokens: 16384
    quality_score: 0.74
    latency_p50_ms: 400
    latency_p95_ms: 900
    supports_streaming: true
    supports_system_prompt: true
    enabled: true
task_preferences:
  code_generation:
    preferred: [gpt-4o, claude-3-opus]
`

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	reg, err := moerouter.LoadRegistryBytes([]byte(sampleCatalogue))
	if err != nil {
		logger.Error("failed to load model registry", "error", err)
		os.Exit(1)
	}

	router := moerouter.NewFromRegistry(reg, moerouter.WithLogger(logger))

	budget := 0.001
	req := types.RoutingRequest{
		TaskType:              types.TaskCodeGeneration,
		TaskDescription:       "Write a Go function that reverses a linked list.",
		EstimatedInputTokens:  500,
		EstimatedOutputTokens: 1000,
		QualityRequirement:    0.7,
		CostBudget:            &budget,
	}

	decision := router.SelectModel(req)
	logger.Info("single-model selection",
		"selected", decision.SelectedModel,
		"strategy", decision.RoutingStrategy,
		"estimated_cost", decision.EstimatedCost,
		"confidence", decision.Confidence,
		"rationale", decision.Rationale,
	)

	if decision.SelectedModel != types.NoneModel {
		latency := 850.0
		cost := decision.EstimatedCost
		quality := 0.9
		router.RecordFeedback(types.FeedbackData{
			ModelID:         decision.SelectedModel,
			TaskType:        req.TaskType,
			Outcome:         types.OutcomeSuccess,
			ActualCost:      &cost,
			ActualLatencyMs: &latency,
			QualityScore:    &quality,
			PRMerged:        true,
			Timestamp:       time.Now(),
		}, &decision)
	}

	parallelReq := types.RoutingRequest{
		TaskType:           types.TaskSecurityAudit,
		TaskDescription:    "Audit this authentication middleware for privilege escalation.",
		QualityRequirement: 0.7,
		EnableParallel:     true,
	}

	parallelDecision := router.SelectModel(parallelReq)
	logger.Info("parallel selection",
		"strategy", parallelDecision.RoutingStrategy,
		"parallel_models", parallelDecision.ParallelModels,
	)

	if parallelDecision.RoutingStrategy == types.StrategyParallel {
		models := make([]types.ModelDefinition, 0, len(parallelDecision.ParallelModels))
		for _, id := range parallelDecision.ParallelModels {
			if m, ok := reg.Get(id); ok {
				models = append(models, m)
			}
		}

		callFn := func(ctx context.Context, m types.ModelDefinition) (any, error) {
			return fmt.Sprintf("response from %s", m.ID), nil
		}

		results := hybrid.ExecuteParallel(context.Background(), models, callFn, 5*time.Second)
		winner, evidence, err := hybrid.ApplyConsensus(results, hybrid.ConsensusQualityWeighted)
		if err != nil {
			logger.Error("parallel dispatch failed", "error", err)
			os.Exit(1)
		}

		logger.Info("consensus result",
			"winner", winner.Model.ID,
			"response", winner.Response,
			"evidence", evidence.Description,
			"weight", evidence.Weight,
		)
	}

	snapshot := router.ExportMetrics(time.Now())
	logger.Info("learning loop snapshot", "weights", len(snapshot.ModelWeights), "ab_tests", len(snapshot.ActiveABTests))
}
