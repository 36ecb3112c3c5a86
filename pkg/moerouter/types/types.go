// Package types defines the wire-level data model shared across the
// router's components: model definitions, routing requests, decisions,
// and feedback. This package imports only the standard library, so
// every other package here can import it without cycles.
package types

import "time"

// Provider identifies the organization/operator of one or more models.
// It is the unit at which the circuit breaker (pkg/breaker) acts.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderMistral   Provider = "mistral"
	ProviderCohere    Provider = "cohere"
	ProviderIBM       Provider = "ibm"
	ProviderLocal     Provider = "local"
)

// validProviders is the closed vocabulary the registry validates against.
var validProviders = map[Provider]bool{
	ProviderOpenAI: true, ProviderAnthropic: true, ProviderGoogle: true,
	ProviderMistral: true, ProviderCohere: true, ProviderIBM: true, ProviderLocal: true,
}

// IsValid reports whether p is a recognized provider.
func (p Provider) IsValid() bool {
	return validProviders[p]
}

// Capability is a tag drawn from a closed vocabulary describing what a
// model can do.
type Capability string

const (
	CapabilityReasoning      Capability = "reasoning"
	CapabilityCode           Capability = "code"
	CapabilityVision         Capability = "vision"
	CapabilityJSONMode       Capability = "json_mode"
	CapabilityFunctionCalling Capability = "function_calling"
	CapabilityLongContext    Capability = "long_context"
	CapabilityStreaming      Capability = "streaming"
	CapabilityTools          Capability = "tools"
)

var validCapabilities = map[Capability]bool{
	CapabilityReasoning: true, CapabilityCode: true, CapabilityVision: true,
	CapabilityJSONMode: true, CapabilityFunctionCalling: true,
	CapabilityLongContext: true, CapabilityStreaming: true, CapabilityTools: true,
}

// IsValid reports whether c is a recognized capability tag.
func (c Capability) IsValid() bool {
	return validCapabilities[c]
}

// TaskType classifies the kind of work a RoutingRequest represents.
type TaskType string

const (
	TaskCodeGeneration TaskType = "code_generation"
	TaskCodeReview     TaskType = "code_review"
	TaskPlanning       TaskType = "planning"
	TaskReasoning      TaskType = "reasoning"
	TaskSecurityAudit  TaskType = "security_audit"
	TaskDocumentation  TaskType = "documentation"
	TaskToolUse        TaskType = "tool_use"
	TaskLongContext    TaskType = "long_context"
	TaskGeneral        TaskType = "general"
)

// ModelDefinition is an immutable-after-load description of a routable
// model. Invariant: QualityScore must be in [0,1]; CostPer1KOutput
// typically (not enforced) >= CostPer1KInput.
type ModelDefinition struct {
	ID       string     `yaml:"id" json:"id"`
	Provider Provider   `yaml:"provider" json:"provider"`

	Capabilities []Capability `yaml:"capabilities" json:"capabilities"`

	CostPer1KInput  float64 `yaml:"cost_per_1k_input" json:"cost_per_1k_input"`
	CostPer1KOutput float64 `yaml:"cost_per_1k_output" json:"cost_per_1k_output"`

	ContextWindow   int `yaml:"context_window" json:"context_window"`
	MaxOutputTokens int `yaml:"max_output_tokens" json:"max_output_tokens"`

	QualityScore float64 `yaml:"quality_score" json:"quality_score"`

	LatencyP50Ms *float64 `yaml:"latency_p50_ms,omitempty" json:"latency_p50_ms,omitempty"`
	LatencyP95Ms *float64 `yaml:"latency_p95_ms,omitempty" json:"latency_p95_ms,omitempty"`

	SupportsStreaming     bool `yaml:"supports_streaming" json:"supports_streaming"`
	SupportsSystemPrompt  bool `yaml:"supports_system_prompt" json:"supports_system_prompt"`

	Enabled bool `yaml:"enabled" json:"enabled"`
}

// HasCapability reports whether the model declares capability c.
func (m *ModelDefinition) HasCapability(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// RoutingRequest describes a single task to be routed to a model.
type RoutingRequest struct {
	TaskType        TaskType
	TaskDescription string

	EstimatedInputTokens  int // 0 = not supplied
	EstimatedOutputTokens int

	ContextSize int // 0 = no explicit minimum

	QualityRequirement float64 // hard lower bound on QualityScore

	CostBudget *float64 // nil = no budget

	LatencyRequirementMs *int // nil = no requirement

	RequiresTools      bool
	RequiresVision     bool
	RequiresJSONMode   bool
	RequiresStreaming  bool

	VendorPreference *Provider
	VendorDiversity  bool

	EnableParallel bool

	Metadata map[string]string
}

// MetadataCritical reports whether metadata["critical"] is truthy, per
// spec §4.5 parallel-eligibility rule.
func (r *RoutingRequest) MetadataCritical() bool {
	if r.Metadata == nil {
		return false
	}
	v, ok := r.Metadata["critical"]
	return ok && (v == "true" || v == "1" || v == "yes")
}

// RoutingStrategy tags how a Decision was produced.
type RoutingStrategy string

const (
	StrategySingle   RoutingStrategy = "single"
	StrategyParallel RoutingStrategy = "parallel"
)

// Evidence cites one contributor to a routing Decision.
type Evidence struct {
	Source      string  `json:"source"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// NoneModel is the reserved selected_model value meaning "no eligible
// candidate" (spec §3.1 Decision, §4.7 Empty-result policy).
const NoneModel = "none"

// Decision is the router's output for a single SelectModel call.
type Decision struct {
	SelectedModel   string
	FallbackModels  []string
	RoutingStrategy RoutingStrategy
	ParallelModels  []string

	EstimatedCost    float64
	EstimatedQuality float64
	Confidence       float64

	Evidence  []Evidence
	Rationale string
}

// Outcome classifies how a dispatched request turned out.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// FeedbackData reports the real-world outcome of a dispatched request,
// feeding the Performance Tracker, Circuit Breaker and Learning Loop.
type FeedbackData struct {
	ModelID  string
	TaskType TaskType
	Outcome  Outcome

	ActualCost        *float64
	ActualLatencyMs    *float64
	QualityScore      *float64
	UserRating        *int // 1..5
	PRMerged          bool
	PRReverted        bool

	Timestamp time.Time
}
