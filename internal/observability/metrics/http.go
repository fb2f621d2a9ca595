package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	questionsTotal      *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	oracleCallsTotal    *prometheus.CounterVec
	repairAttemptsTotal *prometheus.CounterVec
	candidateCount      *prometheus.HistogramVec
	fetchDocsTotal      *prometheus.CounterVec
	fetchBytesTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traza",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "traza",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "traza",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	questionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traza",
			Subsystem: "pipeline",
			Name:      "questions_total",
			Help:      "Total answered questions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "traza",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	oracleCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traza",
			Subsystem: "oracle",
			Name:      "calls_total",
			Help:      "Total oracle completions by stage and status.",
		},
		[]string{"service", "stage", "status"},
	)
	repairAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traza",
			Subsystem: "oracle",
			Name:      "repair_attempts_total",
			Help:      "Total repair attempts after failed output validation.",
		},
		[]string{"service", "stage"},
	)
	candidateCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "traza",
			Subsystem: "pipeline",
			Name:      "candidate_documents",
			Help:      "Distribution of candidate documents per answered question.",
			Buckets:   []float64{0, 1, 3, 10, 30, 100, 300, 1000},
		},
		[]string{"service"},
	)
	fetchDocsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traza",
			Subsystem: "fetch",
			Name:      "documents_total",
			Help:      "Total fetched documents by terminal status.",
		},
		[]string{"service", "status"},
	)
	fetchBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "traza",
			Subsystem: "fetch",
			Name:      "bytes_total",
			Help:      "Total evidence bytes admitted into the budget.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		questionsTotal,
		stageDuration,
		oracleCallsTotal,
		repairAttemptsTotal,
		candidateCount,
		fetchDocsTotal,
		fetchBytesTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		questionsTotal:      questionsTotal,
		stageDuration:       stageDuration,
		oracleCallsTotal:    oracleCallsTotal,
		repairAttemptsTotal: repairAttemptsTotal,
		candidateCount:      candidateCount,
		fetchDocsTotal:      fetchDocsTotal,
		fetchBytesTotal:     fetchBytesTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/traces/"):
		return "/v1/traces/{tickbar}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQuestion(service, outcome string, candidates int) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.questionsTotal.WithLabelValues(service, outcome).Inc()
	m.candidateCount.WithLabelValues(service).Observe(float64(candidates))
}

func (m *HTTPServerMetrics) ObserveStage(service, stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordOracleCall(service, stage string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.oracleCallsTotal.WithLabelValues(service, stage, status).Inc()
}

func (m *HTTPServerMetrics) RecordRepairAttempt(service, stage string) {
	m.repairAttemptsTotal.WithLabelValues(service, stage).Inc()
}

func (m *HTTPServerMetrics) RecordFetch(service string, report FetchObservation) {
	m.fetchDocsTotal.WithLabelValues(service, "succeeded").Add(float64(report.Succeeded))
	m.fetchDocsTotal.WithLabelValues(service, "failed").Add(float64(report.Failed))
	m.fetchDocsTotal.WithLabelValues(service, "skipped_budget").Add(float64(report.SkippedBudget))
	m.fetchDocsTotal.WithLabelValues(service, "discarded").Add(float64(report.Discarded))
	if report.BytesUsed > 0 {
		m.fetchBytesTotal.WithLabelValues(service).Add(float64(report.BytesUsed))
	}
}

// FetchObservation mirrors the fetch report counters without importing the
// domain package into the metrics layer.
type FetchObservation struct {
	Succeeded     int
	Failed        int
	SkippedBudget int
	Discarded     int
	BytesUsed     int
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

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
