package telemetry

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// Metrics collects Prometheus metrics for teardown runs. It implements
// engine.ExecutionMetrics, so wiring it into the engine is a single option.
// When metrics are disabled every method is a no-op.
type Metrics struct {
	config MetricsConfig

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	resourcesDiscovered *prometheus.CounterVec

	deletionsTotal   *prometheus.CounterVec
	deletionDuration *prometheus.HistogramVec
	deletionAttempts *prometheus.HistogramVec
	phaseTransitions *prometheus.CounterVec

	apiCalls  *prometheus.CounterVec
	apiErrors *prometheus.CounterVec

	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

var _ engine.ExecutionMetrics = (*Metrics)(nil)

// NewMetrics creates a metrics collector. A disabled config yields a no-op
// instance that is still safe to call.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of teardown runs started",
			},
			[]string{"dry_run"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of teardown runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of teardown runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		resourcesDiscovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_discovered_total",
				Help:      "Total number of resources returned by discovery",
			},
			[]string{"region"},
		),

		deletionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deletions_total",
				Help:      "Total number of per-resource outcomes",
			},
			[]string{"resource_type", "status"},
		),
		deletionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deletion_duration_seconds",
				Help:      "Time from first attempt to terminal outcome per resource",
				Buckets:   buckets,
			},
			[]string{"resource_type"},
		),
		deletionAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deletion_attempts",
				Help:      "Delete attempts needed to reach a terminal outcome",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
			[]string{"resource_type"},
		),
		phaseTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_transitions_total",
				Help:      "Total number of per-resource phase transitions",
			},
			[]string{"resource_type", "phase"},
		),

		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_calls_total",
				Help:      "Total number of cloud API calls",
			},
			[]string{"service", "operation"},
		),
		apiErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of cloud API errors",
			},
			[]string{"service", "operation"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by classification",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by code",
			},
			[]string{"code"},
		),

		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of in-flight teardown runs",
			},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.resourcesDiscovered,
		m.deletionsTotal,
		m.deletionDuration,
		m.deletionAttempts,
		m.phaseTransitions,
		m.apiCalls,
		m.apiErrors,
		m.errorsByClass,
		m.errorsByCode,
		m.activeRuns,
	)

	return m, nil
}

// PhaseChanged implements engine.ExecutionMetrics.
func (m *Metrics) PhaseChanged(resourceType, from, to string) {
	if m.phaseTransitions == nil {
		return
	}
	m.phaseTransitions.WithLabelValues(resourceType, to).Inc()
}

// OutcomeObserved implements engine.ExecutionMetrics.
func (m *Metrics) OutcomeObserved(resourceType, status string, attempts int, elapsed time.Duration) {
	if m.deletionsTotal == nil {
		return
	}
	m.deletionsTotal.WithLabelValues(resourceType, status).Inc()
	if attempts > 0 {
		m.deletionDuration.WithLabelValues(resourceType).Observe(elapsed.Seconds())
		m.deletionAttempts.WithLabelValues(resourceType).Observe(float64(attempts))
	}
}

// RecordRunStarted increments the started-run counter and the active gauge.
func (m *Metrics) RecordRunStarted(dryRun bool) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(fmt.Sprintf("%t", dryRun)).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a finished run.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// RecordDiscovery adds to the per-region discovery counter.
func (m *Metrics) RecordDiscovery(region string, count int) {
	if m.resourcesDiscovered == nil {
		return
	}
	m.resourcesDiscovered.WithLabelValues(region).Add(float64(count))
}

// RecordAPICall counts one cloud API call.
func (m *Metrics) RecordAPICall(service, operation string) {
	if m.apiCalls == nil {
		return
	}
	m.apiCalls.WithLabelValues(service, operation).Inc()
}

// RecordAPIError counts one cloud API error.
func (m *Metrics) RecordAPIError(service, operation string) {
	if m.apiErrors == nil {
		return
	}
	m.apiErrors.WithLabelValues(service, operation).Inc()
}

// RecordError counts an error by class and, when present, code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Timer times one operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a started timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns the HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint in the background.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()

	return nil
}
