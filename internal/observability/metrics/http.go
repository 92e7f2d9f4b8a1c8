package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

const namespace = "evidence"

// HTTPServerMetrics covers the API process: HTTP traffic, search outcomes, per-channel
// behaviour, the query cache and the active corpus snapshot.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal     *prometheus.CounterVec
	searchDuration  *prometheus.HistogramVec
	searchReturned  prometheus.Histogram
	channelTotal    *prometheus.CounterVec
	channelDuration *prometheus.HistogramVec
	channelResults  *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	snapshotVersion prometheus.Gauge
	breakers        breakerGauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "search",
			Name:        "requests_total",
			Help:        "Total evidence searches by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "search",
			Name:        "duration_seconds",
			Help:        "Evidence search duration in seconds by outcome.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	searchReturned := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "search",
			Name:        "returned_results",
			Help:        "Distribution of results returned per search.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21, 50},
			ConstLabels: constLabels,
		},
	)
	channelTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "channel",
			Name:        "requests_total",
			Help:        "Retrieval channel calls by channel and final state.",
			ConstLabels: constLabels,
		},
		[]string{"channel", "state"},
	)
	channelDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "channel",
			Name:        "duration_seconds",
			Help:        "Retrieval channel latency in seconds.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		},
		[]string{"channel"},
	)
	channelResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "channel",
			Name:        "results",
			Help:        "Candidates returned per channel call.",
			Buckets:     []float64{0, 1, 5, 10, 25, 50, 100},
			ConstLabels: constLabels,
		},
		[]string{"channel"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "lookups_total",
			Help:        "Query cache lookups by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	snapshotVersion := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "corpus",
			Name:        "snapshot_version",
			Help:        "Version of the corpus statistics snapshot in use.",
			ConstLabels: constLabels,
		},
	)
	breakers := newBreakerGauge(constLabels)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchReturned,
		channelTotal,
		channelDuration,
		channelResults,
		cacheLookups,
		snapshotVersion,
		breakers.vec,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		searchTotal:     searchTotal,
		searchDuration:  searchDuration,
		searchReturned:  searchReturned,
		channelTotal:    channelTotal,
		channelDuration: channelDuration,
		channelResults:  channelResults,
		cacheLookups:    cacheLookups,
		snapshotVersion: snapshotVersion,
		breakers:        breakers,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) ObserveChannel(channel domain.Channel, state domain.ChannelState, elapsed time.Duration, results int) {
	m.channelTotal.WithLabelValues(string(channel), string(state)).Inc()
	if state == domain.ChannelDisabled {
		return
	}
	m.channelDuration.WithLabelValues(string(channel)).Observe(elapsed.Seconds())
	if state == domain.ChannelOK {
		m.channelResults.WithLabelValues(string(channel)).Observe(float64(results))
	}
}

func (m *HTTPServerMetrics) ObserveSearch(outcome string, elapsed time.Duration, returned int) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.searchTotal.WithLabelValues(outcome).Inc()
	m.searchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if returned >= 0 {
		m.searchReturned.Observe(float64(returned))
	}
}

func (m *HTTPServerMetrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *HTTPServerMetrics) SetSnapshotVersion(version uint64) {
	m.snapshotVersion.Set(float64(version))
}

func (m *HTTPServerMetrics) ObserveBreakerState(operation, state string) {
	m.breakers.set(operation, state)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
