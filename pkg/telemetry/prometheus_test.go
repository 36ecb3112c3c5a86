package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/moerouter/pkg/breaker"
	"github.com/blueberrycongee/moerouter/pkg/telemetry"
)

// findCounter locates the counter value for name carrying the given
// label set within a Gather() result.
func findCounter(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			got := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range labels {
				if got[k] != v {
					match = false
					break
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func TestPrometheus_RecordSelection(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := telemetry.NewPrometheus(reg)

	sink.RecordSelection("gpt-4o", "single")
	sink.RecordSelection("gpt-4o", "single")

	got, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(2), findCounter(t, got, "moerouter_selections_total", map[string]string{"model": "gpt-4o", "strategy": "single"}))
}

func TestPrometheus_RecordBreakerTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := telemetry.NewPrometheus(reg)

	sink.RecordBreakerTransition("openai", breaker.StateClosed, breaker.StateOpen)

	got, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(1), findCounter(t, got, "moerouter_breaker_transitions_total", map[string]string{"provider": "openai", "from": "closed", "to": "open"}))
}

func TestNoop_NeverPanics(t *testing.T) {
	var s telemetry.Sink = telemetry.Noop{}
	s.RecordSelection("x", "single")
	s.RecordBreakerTransition("openai", breaker.StateClosed, breaker.StateOpen)
	s.RecordABSample("test1", "a")
	s.RecordStoreError("get", nil)
}
