package registry

import (
	"sort"

	"github.com/blueberrycongee/moerouter/pkg/moerouter/types"
)

// taskCapability maps a task type to the capability best suited to it.
// Used as the fallback ordering for task types the config document's
// task_preferences (spec §6) leaves unconfigured. Task types with no
// strong capability affinity (general) fall through to quality-only
// ordering.
var taskCapability = map[types.TaskType]types.Capability{
	types.TaskCodeGeneration: types.CapabilityCode,
	types.TaskCodeReview:     types.CapabilityCode,
	types.TaskPlanning:       types.CapabilityReasoning,
	types.TaskReasoning:      types.CapabilityReasoning,
	types.TaskSecurityAudit:  types.CapabilityReasoning,
	types.TaskToolUse:        types.CapabilityFunctionCalling,
	types.TaskLongContext:    types.CapabilityLongContext,
}

// TaskPreferences returns the models biasing scoring for taskType, per
// spec §4.1/§6. When the config document configured an explicit
// task_preferences entry for taskType, its ordered model id list wins
// (unknown or disabled ids are skipped). Otherwise it falls back to
// capability-affinity ordering: enabled models advertising the task's
// affine capability first, then the remaining enabled models, each
// partition sorted by quality score descending. Results are cached per
// task type since the registry is immutable once loaded.
func (r *Registry) TaskPreferences(taskType types.TaskType) []types.ModelDefinition {
	if v, ok := r.prefCache.Get(string(taskType)); ok {
		return v.([]types.ModelDefinition)
	}

	var out []types.ModelDefinition
	if ids, ok := r.taskPrefs[taskType]; ok {
		for _, id := range ids {
			if m, ok := r.Get(id); ok && m.Enabled {
				out = append(out, m)
			}
		}
	} else {
		out = r.capabilityAffinityOrder(taskType)
	}

	r.prefCache.SetDefault(string(taskType), out)
	return out
}

func (r *Registry) capabilityAffinityOrder(taskType types.TaskType) []types.ModelDefinition {
	affine := taskCapability[taskType]
	enabled := r.Enabled()

	var preferred, rest []types.ModelDefinition
	for _, m := range enabled {
		if affine != "" && m.HasCapability(affine) {
			preferred = append(preferred, m)
		} else {
			rest = append(rest, m)
		}
	}

	byQualityDesc := func(s []types.ModelDefinition) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].QualityScore > s[j].QualityScore })
	}
	byQualityDesc(preferred)
	byQualityDesc(rest)

	return append(preferred, rest...)
}

// PrefersModel reports whether taskType's preferences favour m: the
// config document lists m.ID for taskType, or (when the document has
// no entry for taskType) m advertises the capability affine to
// taskType. It does not check m.Enabled, and in the fallback case it
// is false for the non-affine models that TaskPreferences still
// returns after the affine ones.
func (r *Registry) PrefersModel(taskType types.TaskType, m types.ModelDefinition) bool {
	if ids, ok := r.taskPrefs[taskType]; ok {
		for _, id := range ids {
			if id == m.ID {
				return true
			}
		}
		return false
	}
	affine := taskCapability[taskType]
	return affine != "" && m.HasCapability(affine)
}
