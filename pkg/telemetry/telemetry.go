// Package telemetry defines the router's telemetry sink contract
// (spec §6): an injected collaborator that records selection counters,
// breaker transitions, and A/B samples. Per spec it must never block
// or throw — implementations are expected to be best-effort.
package telemetry

import "github.com/blueberrycongee/moerouter/pkg/breaker"

// Sink receives observability events from the router's components.
// Every method must return promptly and never panic; a Sink is called
// from hot paths (SelectModel, RecordOutcome) and breaker transitions
// that fire from arbitrary goroutines.
type Sink interface {
	// RecordSelection is called once per SelectModel call with the
	// outcome: the chosen model (or types.NoneModel) and the strategy.
	RecordSelection(model string, strategy string)

	// RecordBreakerTransition is called whenever a provider's circuit
	// breaker changes state.
	RecordBreakerTransition(provider string, from, to breaker.State)

	// RecordABSample is called whenever feedback lands in an active
	// A/B test arm.
	RecordABSample(testID, arm string)

	// RecordStoreError is called when the optional persistence backing
	// store fails; the caller has already fallen back to memory-only
	// operation and this call is purely informational.
	RecordStoreError(operation string, err error)
}

// Noop is a Sink that discards every event. It is the default when no
// sink is injected, so every component can call telemetry
// unconditionally without nil-checking.
type Noop struct{}

func (Noop) RecordSelection(string, string)                       {}
func (Noop) RecordBreakerTransition(string, breaker.State, breaker.State) {}
func (Noop) RecordABSample(string, string)                         {}
func (Noop) RecordStoreError(string, error)                        {}

var _ Sink = Noop{}
