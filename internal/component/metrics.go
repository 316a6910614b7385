package component

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for registry observability.
type Metrics struct {
	Registered       prometheus.Gauge       // Current number of registered components
	Transitions      *prometheus.CounterVec // Completed transitions by component and kind
	TransitionErrors *prometheus.CounterVec // Failed transitions by component and kind

	collectors []prometheus.Collector
	registerer prometheus.Registerer
}

// NewMetrics creates Prometheus metrics for a Registry. The registerer
// parameter allows flexible registration (global registry, test registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	registered := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deluge_components_registered",
		Help: "Current number of registered components",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deluge_component_transitions_total",
		Help: "Total number of completed component transitions",
	}, []string{"component", "transition"})

	transitionErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deluge_component_transition_errors_total",
		Help: "Total number of failed component transitions",
	}, []string{"component", "transition"})

	collectors := []prometheus.Collector{registered, transitions, transitionErrors}
	reg.MustRegister(collectors...)

	return &Metrics{
		Registered:       registered,
		Transitions:      transitions,
		TransitionErrors: transitionErrors,
		collectors:       collectors,
		registerer:       reg,
	}
}

// Unregister removes all metrics from the registry. Needed when a test
// builds multiple registries against the same registerer.
func (m *Metrics) Unregister() {
	for _, c := range m.collectors {
		m.registerer.Unregister(c)
	}
}

// observe records a finished transition attempt.
func (m *Metrics) observe(name, transition string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.TransitionErrors.WithLabelValues(name, transition).Inc()
		return
	}
	m.Transitions.WithLabelValues(name, transition).Inc()
}
