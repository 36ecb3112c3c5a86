// Package moerouter is the public facade for the MoE model router: it
// re-exports the Router Core (pkg/routing) alongside constructors for
// every collaborator component, so a caller can wire the whole system
// from one import instead of reaching into pkg/registry, pkg/tracker,
// pkg/breaker, pkg/learning, and pkg/hybrid individually.
package moerouter

import (
	"github.com/blueberrycongee/moerouter/pkg/breaker"
	"github.com/blueberrycongee/moerouter/pkg/costpredictor"
	"github.com/blueberrycongee/moerouter/pkg/hybrid"
	"github.com/blueberrycongee/moerouter/pkg/learning"
	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
	"github.com/blueberrycongee/moerouter/pkg/registry"
	"github.com/blueberrycongee/moerouter/pkg/routing"
	"github.com/blueberrycongee/moerouter/pkg/telemetry"
	"github.com/blueberrycongee/moerouter/pkg/tracker"
)

// Router is the Router Core (spec §4.7): the single synchronous entry
// point (SelectModel) plus the feedback path (RecordOutcome /
// RecordFeedback). Re-exported so callers only need this package.
type Router = routing.Router

// Option configures a Router at construction time.
type Option = routing.Option

// Re-exported Option constructors, so `moerouter.WithX` reads the same
// as `routing.WithX` without an extra import.
var (
	WithRegistry        = routing.WithRegistry
	WithRegistryManager = routing.WithRegistryManager
	WithPredictor       = routing.WithPredictor
	WithTracker         = routing.WithTracker
	WithBreakers        = routing.WithBreakers
	WithLearning        = routing.WithLearning
	WithHybrid          = routing.WithHybrid
	WithTelemetry       = routing.WithTelemetry
	WithWeights         = routing.WithWeights
	WithLogger          = routing.WithLogger
)

// Weights are the Router Core's §4.7 Step 3 scoring coefficients.
type Weights = routing.Weights

// DefaultWeights returns the spec's stated scoring weight defaults.
func DefaultWeights() Weights { return routing.DefaultWeights() }

// LoadRegistry parses and validates a YAML configuration document
// (spec §6) from path into a Model Registry.
func LoadRegistry(path string) (*registry.Registry, error) {
	return registry.Load(path)
}

// LoadRegistryBytes is LoadRegistry without touching the filesystem.
func LoadRegistryBytes(data []byte) (*registry.Registry, error) {
	return registry.LoadBytes(data)
}

// New builds the Model Registry from a config document at path, then a
// Router against it with sensible defaults for every other collaborator
// (in-memory Tracker, default Circuit Breaker config, fresh Learning
// Loop, default Hybrid Strategy, no-op telemetry). Each default can be
// overridden via opts.
func New(configPath string, opts ...Option) (*Router, error) {
	reg, err := LoadRegistry(configPath)
	if err != nil {
		return nil, err
	}
	return routing.New(reg, opts...), nil
}

// NewFromRegistry builds a Router against an already-loaded Registry,
// e.g. one produced by LoadRegistryBytes or a registry.Manager snapshot.
func NewFromRegistry(reg *registry.Registry, opts ...Option) *Router {
	return routing.New(reg, opts...)
}

// Re-exported constructors for the individual collaborator components,
// for callers that want to build and inspect one in isolation (e.g.
// sharing a single Tracker across multiple Routers).
var (
	NewTracker        = tracker.New
	NewBreakerRegistry = breaker.NewRegistry
	DefaultBreakerConfig = breaker.DefaultConfig
	NewLearningLoop   = learning.New
	NewHybridStrategy = hybrid.New
	NewCostPredictor  = costpredictor.New
)

// NoopTelemetry is a telemetry.Sink that discards everything, the
// Router's default when WithTelemetry is not supplied.
var NoopTelemetry = telemetry.Noop{}

// Re-exported types for convenience at the call site.
type (
	RoutingRequest = types.RoutingRequest
	Decision       = types.Decision
	FeedbackData   = types.FeedbackData
	ModelDefinition = types.ModelDefinition
)
