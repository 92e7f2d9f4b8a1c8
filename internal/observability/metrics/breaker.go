package metrics

import "github.com/prometheus/client_golang/prometheus"

var breakerStates = []string{"closed", "half-open", "open"}

// breakerGauge exposes one series per operation and state; the current state reads 1.
type breakerGauge struct {
	vec *prometheus.GaugeVec
}

func newBreakerGauge(constLabels prometheus.Labels) breakerGauge {
	return breakerGauge{vec: prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "circuit_breaker_state",
			Help:        "Circuit breaker state per outbound operation.",
			ConstLabels: constLabels,
		},
		[]string{"operation", "state"},
	)}
}

func (g breakerGauge) set(operation, state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1
		}
		g.vec.WithLabelValues(operation, s).Set(value)
	}
}
