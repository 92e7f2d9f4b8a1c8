package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	refitTotal        *prometheus.CounterVec
	refitDuration     *prometheus.HistogramVec
	refitInFlight     prometheus.Gauge
	passagesReindexed prometheus.Counter
	snapshotVersion   prometheus.Gauge
	corpusDocuments   prometheus.Gauge
	breakers          breakerGauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	refitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "refit_total",
			Help:      "Total corpus refit runs by status.",
		},
		[]string{"service", "status"},
	)
	refitDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "refit_duration_seconds",
			Help:      "Corpus refit plus reindex duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	refitInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "refit_in_flight",
			Help:        "Number of in-flight refit runs.",
			ConstLabels: constLabels,
		},
	)
	passagesReindexed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "passages_reindexed_total",
			Help:        "Total passages re-embedded and upserted into the vector index.",
			ConstLabels: constLabels,
		},
	)
	snapshotVersion := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "corpus",
			Name:        "snapshot_version",
			Help:        "Version of the last corpus statistics snapshot fitted by this worker.",
			ConstLabels: constLabels,
		},
	)
	corpusDocuments := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "corpus",
			Name:        "documents",
			Help:        "Passages counted by the last corpus fit.",
			ConstLabels: constLabels,
		},
	)

	breakers := newBreakerGauge(constLabels)

	registry.MustRegister(refitTotal, refitDuration, refitInFlight, passagesReindexed, snapshotVersion, corpusDocuments, breakers.vec)

	return &WorkerMetrics{
		registry:          registry,
		service:           service,
		refitTotal:        refitTotal,
		refitDuration:     refitDuration,
		refitInFlight:     refitInFlight,
		passagesReindexed: passagesReindexed,
		snapshotVersion:   snapshotVersion,
		corpusDocuments:   corpusDocuments,
		breakers:          breakers,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRefit() {
	m.refitInFlight.Inc()
}

func (m *WorkerMetrics) FinishRefit(duration time.Duration, err error) {
	m.refitInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.refitTotal.WithLabelValues(m.service, status).Inc()
	m.refitDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveSnapshot(version uint64, documents int) {
	m.snapshotVersion.Set(float64(version))
	m.corpusDocuments.Set(float64(documents))
}

func (m *WorkerMetrics) AddReindexed(passages int) {
	if passages <= 0 {
		return
	}
	m.passagesReindexed.Add(float64(passages))
}

func (m *WorkerMetrics) ObserveBreakerState(operation, state string) {
	m.breakers.set(operation, state)
}
