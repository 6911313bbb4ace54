// Package metrics provides Prometheus-based metrics collection for RAD.
// It tracks the watcher poll loop, web-port extraction, nmap runs, and
// feroxbuster dispatch outcomes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all RAD metrics.
	namespace = "rad"

	// Subsystems.
	subsystemWatcher  = "watcher"
	subsystemDispatch = "dispatch"
	subsystemScan     = "scan"
	subsystemPipeline = "pipeline"
)

// Pipeline state gauge values.
const (
	StateIdle = iota
	StateWaiting
	StateScanning
	StateDispatching
)

// Metrics holds all Prometheus collectors for the recon pipeline.
type Metrics struct {
	// Watcher metrics.
	pollTicks  *prometheus.CounterVec
	webPorts   prometheus.Counter
	fileChecks *prometheus.CounterVec

	// Scan metrics.
	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram

	// Dispatch metrics.
	dispatchesTotal  *prometheus.CounterVec
	dispatchDuration prometheus.Histogram

	// Pipeline metrics.
	pipelineState prometheus.Gauge
	runsTotal     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a metrics instance with all collectors registered on a fresh
// registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemWatcher,
			Name:      "poll_ticks_total",
			Help:      "Watcher poll iterations by state.",
		}, []string{"state"}),
		webPorts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemWatcher,
			Name:      "web_ports_found_total",
			Help:      "Web-service ports extracted from completed scans.",
		}),
		fileChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemWatcher,
			Name:      "file_checks_total",
			Help:      "Output-file existence checks by result.",
		}, []string{"result"}),
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "runs_total",
			Help:      "nmap scan launches by status.",
		}, []string{"status"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "nmap scan duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		dispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDispatch,
			Name:      "invocations_total",
			Help:      "feroxbuster invocations by status.",
		}, []string{"status"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemDispatch,
			Name:      "duration_seconds",
			Help:      "feroxbuster invocation duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		pipelineState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Name:      "state",
			Help:      "Current pipeline state (0=idle 1=waiting 2=scanning 3=dispatching).",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Name:      "runs_total",
			Help:      "Complete recon pipeline runs by status.",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.pollTicks,
		m.webPorts,
		m.fileChecks,
		m.scansTotal,
		m.scanDuration,
		m.dispatchesTotal,
		m.dispatchDuration,
		m.pipelineState,
		m.runsTotal,
	)

	// Standard Go and process collectors for runtime visibility.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the underlying Prometheus registry for HTTP exposure.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncrementPollTicks records one watcher poll iteration in the given state.
func (m *Metrics) IncrementPollTicks(state string) {
	m.pollTicks.WithLabelValues(state).Inc()
}

// IncrementFileChecks records an output-file existence check result.
func (m *Metrics) IncrementFileChecks(result string) {
	m.fileChecks.WithLabelValues(result).Inc()
}

// AddWebPortsFound records extracted web ports.
func (m *Metrics) AddWebPortsFound(n int) {
	m.webPorts.Add(float64(n))
}

// IncrementScans records an nmap launch outcome.
func (m *Metrics) IncrementScans(status string) {
	m.scansTotal.WithLabelValues(status).Inc()
}

// RecordScanDuration records how long an nmap run took.
func (m *Metrics) RecordScanDuration(d time.Duration) {
	m.scanDuration.Observe(d.Seconds())
}

// IncrementDispatches records a feroxbuster invocation outcome.
func (m *Metrics) IncrementDispatches(status string) {
	m.dispatchesTotal.WithLabelValues(status).Inc()
}

// RecordDispatchDuration records how long a feroxbuster invocation took.
func (m *Metrics) RecordDispatchDuration(d time.Duration) {
	m.dispatchDuration.Observe(d.Seconds())
}

// SetPipelineState updates the pipeline state gauge.
func (m *Metrics) SetPipelineState(state int) {
	m.pipelineState.Set(float64(state))
}

// IncrementRuns records a complete pipeline run outcome.
func (m *Metrics) IncrementRuns(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
}

var (
	globalMetrics *Metrics
	globalOnce    sync.Once
)

// GetGlobalMetrics returns the process-wide metrics instance, creating it on
// first use.
func GetGlobalMetrics() *Metrics {
	globalOnce.Do(func() {
		globalMetrics = New()
	})
	return globalMetrics
}
