// Package breaker implements the per-provider circuit breaker from
// spec §4.4. It is adapted from the teacher's
// internal/resilience/circuitbreaker.go — a reference implementation
// the teacher's own gateway never wired into its router, kept here as
// a deployment-agnostic building block and actually wired into
// pkg/routing, keyed by provider rather than by deployment.
package breaker

import (
	"log/slog"
	"sync"
	"time"
)

// State represents where a single provider's circuit currently sits.
type State int

const (
	// StateClosed allows requests to pass through normally.
	StateClosed State = iota
	// StateOpen blocks all candidates from this provider.
	StateOpen
	// StateHalfOpen admits requests as probes; IsAvailable does not
	// limit how many are admitted while half-open.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config controls a single breaker's thresholds (spec §4.4).
type Config struct {
	// FailureThreshold is the number of consecutive failures before
	// the circuit opens.
	FailureThreshold int
	// HalfOpenSuccessRequired is the number of consecutive successes
	// in half-open state needed to close the circuit.
	HalfOpenSuccessRequired int
	// OpenDuration is how long the circuit stays open before probing.
	OpenDuration time.Duration
}

// DefaultConfig returns the spec's stated defaults: threshold 5,
// open duration 60s, 2 successes to close from half-open.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:        5,
		HalfOpenSuccessRequired: 2,
		OpenDuration:            60 * time.Second,
	}
}

// CircuitBreaker is a single provider's 3-state failure-isolation
// machine.
type CircuitBreaker struct {
	mu           sync.Mutex
	provider     string
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
	config       Config
	onTransition func(provider string, from, to State)
	logger       *slog.Logger
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithLogger injects the logger a breaker reports state transitions
// through. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cb *CircuitBreaker) { cb.logger = logger }
}

// New creates a closed circuit breaker for provider with cfg.
func New(provider string, cfg Config, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{provider: provider, state: StateClosed, config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// OnTransition registers a callback invoked whenever the breaker
// changes state. The callback runs on its own goroutine, never while
// cb.mu is held, so a reentrant call back into the breaker (e.g.
// Reset from within the callback) cannot deadlock. Used to wire
// telemetry.
func (cb *CircuitBreaker) OnTransition(fn func(provider string, from, to State)) {
	cb.mu.Lock()
	cb.onTransition = fn
	cb.mu.Unlock()
}

// IsAvailable reports whether candidates from this provider should be
// considered. It is side-effect-free except for the time-based
// open->half_open transition (spec §4.4 Transitions).
func (cb *CircuitBreaker) IsAvailable() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.config.OpenDuration {
		cb.transition(StateHalfOpen)
		cb.successCount = 0
	}
	return cb.state != StateOpen
}

// RecordSuccess records a successful dispatch to this provider.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.HalfOpenSuccessRequired {
			cb.transition(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	}
}

// RecordFailure records a failed dispatch to this provider.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
			cb.openedAt = time.Now()
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
		cb.openedAt = time.Now()
		cb.successCount = 0
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed (operator override).
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
}

// transition must be called with cb.mu held. The state change itself
// is synchronous; the log line and onTransition callback fire on
// their own goroutine, matching the teacher's
// "go cb.onStateChange(...)" pattern, so neither can deadlock against
// a caller holding cb.mu or reentering the breaker.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to

	provider, logger, onTransition := cb.provider, cb.logger, cb.onTransition
	go func() {
		logger.Info("circuit breaker transition", "provider", provider, "from", from.String(), "to", to.String())
		if onTransition != nil {
			onTransition(provider, from, to)
		}
	}()
}
