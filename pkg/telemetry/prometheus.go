package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blueberrycongee/moerouter/pkg/breaker"
)

// Prometheus is a Sink backed by client_golang counters, grounded on
// the teacher's internal/metrics.Collector + PrometheusCallback
// (internal/observability/prometheus_callback.go) shape: it registers
// its own counters against a caller-supplied Registerer rather than
// owning an HTTP /metrics endpoint — exposition is the excluded
// transport layer's job (spec §1).
type Prometheus struct {
	selections          *prometheus.CounterVec
	breakerTransitions  *prometheus.CounterVec
	abSamples           *prometheus.CounterVec
	storeErrors         *prometheus.CounterVec
}

// NewPrometheus creates and registers the sink's counters against reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moerouter",
			Name:      "selections_total",
			Help:      "Number of SelectModel decisions by chosen model and strategy.",
		}, []string{"model", "strategy"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moerouter",
			Name:      "breaker_transitions_total",
			Help:      "Number of circuit breaker state transitions by provider and target state.",
		}, []string{"provider", "from", "to"}),
		abSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moerouter",
			Name:      "ab_samples_total",
			Help:      "Number of feedback samples recorded against an A/B test arm.",
		}, []string{"test_id", "arm"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moerouter",
			Name:      "store_errors_total",
			Help:      "Number of persistence backing-store failures by operation.",
		}, []string{"operation"}),
	}

	reg.MustRegister(p.selections, p.breakerTransitions, p.abSamples, p.storeErrors)
	return p
}

func (p *Prometheus) RecordSelection(model string, strategy string) {
	p.selections.WithLabelValues(model, strategy).Inc()
}

func (p *Prometheus) RecordBreakerTransition(provider string, from, to breaker.State) {
	p.breakerTransitions.WithLabelValues(provider, from.String(), to.String()).Inc()
}

func (p *Prometheus) RecordABSample(testID, arm string) {
	p.abSamples.WithLabelValues(testID, arm).Inc()
}

func (p *Prometheus) RecordStoreError(operation string, err error) {
	p.storeErrors.WithLabelValues(operation).Inc()
}

var _ Sink = (*Prometheus)(nil)
