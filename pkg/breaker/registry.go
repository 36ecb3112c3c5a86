package breaker

import (
	"log/slog"
	"sync"
)

// Registry holds one CircuitBreaker per provider, created lazily on
// first use, mirroring how the teacher's routers/base.go keys
// per-deployment stats in a single map guarded by a mutex.
type Registry struct {
	mu           sync.Mutex
	breakers     map[string]*CircuitBreaker
	config       Config
	onTransition func(provider string, from, to State)
	logger       *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger injects the logger passed to every breaker this
// registry creates. Defaults to slog.Default().
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates a breaker registry using cfg for every provider.
func NewRegistry(cfg Config, opts ...RegistryOption) *Registry {
	r := &Registry{breakers: make(map[string]*CircuitBreaker), config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnTransition registers a callback applied to every breaker (existing
// and future) created by this registry.
func (r *Registry) OnTransition(fn func(provider string, from, to State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTransition = fn
	for _, cb := range r.breakers {
		cb.OnTransition(fn)
	}
}

// For returns (creating if necessary) the breaker for provider.
func (r *Registry) For(provider string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[provider]
	if !ok {
		cb = New(provider, r.config, WithLogger(r.logger))
		if r.onTransition != nil {
			cb.OnTransition(r.onTransition)
		}
		r.breakers[provider] = cb
	}
	return cb
}

// IsAvailable reports whether provider is currently admitting requests.
func (r *Registry) IsAvailable(provider string) bool {
	return r.For(provider).IsAvailable()
}

// RecordSuccess records a success for provider.
func (r *Registry) RecordSuccess(provider string) {
	r.For(provider).RecordSuccess()
}

// RecordFailure records a failure for provider.
func (r *Registry) RecordFailure(provider string) {
	r.For(provider).RecordFailure()
}

// Reset forces provider's breaker closed.
func (r *Registry) Reset(provider string) {
	r.For(provider).Reset()
}

// ProviderState is one entry of a Registry snapshot.
type ProviderState struct {
	Provider string
	State    State
}

// Snapshot returns the current state of every provider the registry
// has seen, for observability (spec §4.4 Snapshot()).
func (r *Registry) Snapshot() []ProviderState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ProviderState, 0, len(r.breakers))
	for p, cb := range r.breakers {
		out = append(out, ProviderState{Provider: p, State: cb.State()})
	}
	return out
}
