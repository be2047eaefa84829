package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pointlog"

type moduleMetrics struct {
	activeSessions      prometheus.Gauge
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	persistenceErrors   *prometheus.CounterVec
	decodeErrors        prometheus.Counter
	sweepTotal          *prometheus.CounterVec

	calculationsTotal *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "active_sessions",
					Help:      "Sessions currently resident in memory.",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "session_load_duration_seconds",
					Help:      "Session file load duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "session_save_duration_seconds",
					Help:      "Session file save duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			persistenceErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "session_persistence_errors_total",
					Help:      "Failed session file operations by op.",
				},
				[]string{"op"},
			),
			decodeErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "session_decode_errors_total",
					Help:      "Malformed session file lines skipped while loading.",
				},
			),
			sweepTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "session_sweep_total",
					Help:      "Sessions removed by the sweeper by action.",
				},
				[]string{"action"},
			),
			calculationsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "calculations_total",
					Help:      "Evaluated points by verdict.",
				},
				[]string{"in_region"},
			),
			httpRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "http_requests_total",
					Help:      "HTTP requests by method and status code.",
				},
				[]string{"method", "status"},
			),
			httpDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "http_request_duration_seconds",
					Help:      "HTTP request duration in seconds by method.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method"},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.persistenceErrors,
			m.decodeErrors,
			m.sweepTotal,
			m.calculationsTotal,
			m.httpRequestsTotal,
			m.httpDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionLoad(duration time.Duration) {
	getMetrics().sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	getMetrics().sessionSaveDuration.Observe(duration.Seconds())
}

func RecordPersistenceError(op string) {
	getMetrics().persistenceErrors.WithLabelValues(op).Inc()
}

func RecordDecodeError() {
	getMetrics().decodeErrors.Inc()
}

func RecordSweep(action string) {
	getMetrics().sweepTotal.WithLabelValues(action).Inc()
}

func RecordCalculation(inRegion bool) {
	getMetrics().calculationsTotal.WithLabelValues(strconv.FormatBool(inRegion)).Inc()
}

func RecordHTTPRequest(method string, status int, duration time.Duration) {
	m := getMetrics()
	m.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(duration.Seconds())
}
