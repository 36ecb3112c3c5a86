// Package registry implements the Model Registry (spec §4.1): the
// catalogue of candidate models and their static capabilities, cost
// rates, and quality scores that every other component filters and
// scores against.
package registry

import (
	"fmt"
	"sort"

	"github.com/patrickmn/go-cache"

	"github.com/blueberrycongee/moerouter/internal/config"
	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

// Registry holds a validated, immutable set of model definitions.
// A Registry is safe for concurrent reads; it exposes no mutation
// methods itself (Manager is the hot-reloadable wrapper).
type Registry struct {
	models map[string]types.ModelDefinition

	// taskPrefs holds the config document's task_preferences, keyed by
	// task type, each value an ordered list of preferred model ids.
	// Task types absent here fall back to capability-affinity ordering.
	taskPrefs map[types.TaskType][]string

	// prefCache memoizes TaskPreferences, which re-sorts Enabled() on
	// every call otherwise. The registry is immutable once built, so
	// entries never go stale within a Registry's lifetime.
	prefCache *cache.Cache
}

// Opt configures New's construction of a Registry.
type Opt func(*Registry)

// WithTaskPreferences sets the config document's task_preferences
// (spec §6): an ordered list of preferred model ids per task type,
// used as a soft scoring bias rather than a filter (spec §4.1).
func WithTaskPreferences(prefs map[types.TaskType][]string) Opt {
	return func(r *Registry) { r.taskPrefs = prefs }
}

// Load parses and validates a YAML registry document read from path.
func Load(path string) (*Registry, error) {
	doc, err := config.Load(path)
	if err != nil {
		return nil, types.NewConfigError(err.Error())
	}
	return New(doc.Models, WithTaskPreferences(taskPreferencesFromDoc(doc)))
}

// LoadBytes parses and validates a YAML registry document held in
// memory, without touching the filesystem.
func LoadBytes(data []byte) (*Registry, error) {
	doc, err := config.Decode(data)
	if err != nil {
		return nil, types.NewConfigError(err.Error())
	}
	return New(doc.Models, WithTaskPreferences(taskPreferencesFromDoc(doc)))
}

func taskPreferencesFromDoc(doc *config.Document) map[types.TaskType][]string {
	if len(doc.TaskPreferences) == 0 {
		return nil
	}
	out := make(map[types.TaskType][]string, len(doc.TaskPreferences))
	for taskType, pref := range doc.TaskPreferences {
		out[types.TaskType(taskType)] = pref.Preferred
	}
	return out
}

// New validates defs and builds a Registry from them. Validation
// failures (duplicate IDs, unknown provider, out-of-range quality
// score, negative cost, zero context window, malformed capability)
// return a RouterError of kind ConfigError and a nil Registry.
func New(defs []types.ModelDefinition, opts ...Opt) (*Registry, error) {
	models := make(map[string]types.ModelDefinition, len(defs))

	for i, m := range defs {
		if m.ID == "" {
			return nil, types.NewConfigError(fmt.Sprintf("model[%d]: id is required", i))
		}
		if _, dup := models[m.ID]; dup {
			return nil, types.NewConfigError(fmt.Sprintf("model[%d] %q: duplicate model id", i, m.ID))
		}
		if !m.Provider.IsValid() {
			return nil, types.NewConfigError(fmt.Sprintf("model %q: unknown provider %q", m.ID, m.Provider))
		}
		if m.QualityScore < 0 || m.QualityScore > 1 {
			return nil, types.NewConfigError(fmt.Sprintf("model %q: quality_score %v out of [0,1]", m.ID, m.QualityScore))
		}
		if m.CostPer1KInput < 0 || m.CostPer1KOutput < 0 {
			return nil, types.NewConfigError(fmt.Sprintf("model %q: cost_per_1k must be non-negative", m.ID))
		}
		if m.ContextWindow <= 0 {
			return nil, types.NewConfigError(fmt.Sprintf("model %q: context_window must be positive", m.ID))
		}
		for _, c := range m.Capabilities {
			if !c.IsValid() {
				return nil, types.NewConfigError(fmt.Sprintf("model %q: unknown capability %q", m.ID, c))
			}
		}
		models[m.ID] = m
	}

	r := &Registry{
		models:    models,
		prefCache: cache.New(cache.NoExpiration, cache.NoExpiration),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Get returns the definition for modelID, or ok=false if unknown.
func (r *Registry) Get(modelID string) (types.ModelDefinition, bool) {
	m, ok := r.models[modelID]
	return m, ok
}

// All returns every model definition, sorted by ID for deterministic
// iteration order.
func (r *Registry) All() []types.ModelDefinition {
	out := make([]types.ModelDefinition, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Enabled returns every enabled model definition, sorted by ID.
func (r *Registry) Enabled() []types.ModelDefinition {
	out := make([]types.ModelDefinition, 0, len(r.models))
	for _, m := range r.models {
		if m.Enabled {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithCapability filters Enabled() to models advertising capability c.
func (r *Registry) WithCapability(c types.Capability) []types.ModelDefinition {
	var out []types.ModelDefinition
	for _, m := range r.Enabled() {
		if m.HasCapability(c) {
			out = append(out, m)
		}
	}
	return out
}

// Len reports the number of registered models.
func (r *Registry) Len() int {
	return len(r.models)
}
