package types

import "fmt"

// ErrorKind enumerates the router's distinct failure kinds (spec §7).
// Routine selection failures never throw — they are encoded on Decision
// — so a RouterError only comes from registry loading (ConfigError),
// consensus over parallel results (AllParallelFailed from
// ApplyConsensus/JudgeSelect), a single parallel child's Result
// (TimeoutError), and the judge-failure log and store-failure
// telemetry paths (JudgeError, StoreError).
type ErrorKind string

const (
	KindConfigError       ErrorKind = "config_error"
	KindAllParallelFailed ErrorKind = "all_parallel_failed"
	KindTimeoutError      ErrorKind = "timeout_error"
	KindJudgeError        ErrorKind = "judge_error"
	KindStoreError        ErrorKind = "store_error"
)

// RouterError is the router's single error type, modeled on the
// teacher's pkg/errors.LLMError: a stable, inspectable shape rather
// than ad-hoc fmt.Errorf strings.
type RouterError struct {
	Kind      ErrorKind
	Message   string
	Model     string // optional, empty if not model-specific
	Retryable bool
}

func (e *RouterError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("[%s] %s (model=%s)", e.Kind, e.Message, e.Model)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// NewConfigError wraps a registry validation failure.
func NewConfigError(message string) *RouterError {
	return &RouterError{Kind: KindConfigError, Message: message, Retryable: false}
}

// NewAllParallelFailedError reports that every child of a parallel
// dispatch failed (spec §4.5, §7).
func NewAllParallelFailedError(message string) *RouterError {
	return &RouterError{Kind: KindAllParallelFailed, Message: message, Retryable: true}
}

// NewTimeoutError reports a per-child timeout in parallel execution.
func NewTimeoutError(model string) *RouterError {
	return &RouterError{Kind: KindTimeoutError, Message: "request timed out", Model: model, Retryable: true}
}

// NewJudgeError reports a failed or malformed judge callback result.
func NewJudgeError(message string) *RouterError {
	return &RouterError{Kind: KindJudgeError, Message: message, Retryable: false}
}

// NewStoreError wraps a persistence backing-store failure. Per spec §7
// this is always swallowed by the caller and only used for telemetry.
func NewStoreError(message string) *RouterError {
	return &RouterError{Kind: KindStoreError, Message: message, Retryable: true}
}
