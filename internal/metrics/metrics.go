// Package metrics defines the Prometheus collectors of the host. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fasttext"

type Metrics struct {
	gatherer prometheus.Gatherer

	requests      *prometheus.CounterVec
	rows          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	loadSeconds   *prometheus.GaugeVec
	ready         *prometheus.GaugeVec
	downloadBytes prometheus.Counter
	cacheLookups  *prometheus.CounterVec
	memFree       prometheus.Gauge
	diskFree      prometheus.Gauge
}

// New registers the collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Process calls by service and outcome.",
		}, []string{"service", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Input rows processed successfully.",
		}, []string{"service"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_duration_seconds",
			Help:      "Latency of Process calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"service"}),
		loadSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_load_seconds",
			Help:      "Time taken to provision and load the model of a service.",
		}, []string{"service"}),
		ready: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_ready",
			Help:      "1 when the service has a loaded model.",
		}, []string{"service"}),
		downloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_download_bytes_total",
			Help:      "Bytes of model files downloaded.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_cache_lookups_total",
			Help:      "Vector cache lookups by result.",
		}, []string{"result"}),
		memFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_memory_available_bytes",
			Help:      "Available memory on the host.",
		}),
		diskFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_disk_free_bytes",
			Help:      "Free space on the model volume.",
		}),
	}
	reg.MustRegister(m.requests, m.rows, m.duration, m.loadSeconds, m.ready,
		m.downloadBytes, m.cacheLookups, m.memFree, m.diskFree)
	return m
}

// Gatherer exposes the registry, for scraping in tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveProcess(service, outcome string, rows int, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(service, outcome).Inc()
	m.duration.WithLabelValues(service).Observe(took.Seconds())
	if outcome == OutcomeOK {
		m.rows.WithLabelValues(service).Add(float64(rows))
	}
}

func (m *Metrics) ObserveLoad(service string, took time.Duration) {
	if m == nil {
		return
	}
	m.loadSeconds.WithLabelValues(service).Set(took.Seconds())
}

func (m *Metrics) SetReady(service string, ready bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ready {
		v = 1
	}
	m.ready.WithLabelValues(service).Set(v)
}

func (m *Metrics) AddDownloadBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.downloadBytes.Add(float64(n))
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) SetHostResources(memAvailable, diskFree uint64) {
	if m == nil {
		return
	}
	m.memFree.Set(float64(memAvailable))
	m.diskFree.Set(float64(diskFree))
}

// Process outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeInvalidInput  = "invalid_input"
	OutcomeNotReady      = "not_ready"
	OutcomeUnknown       = "unknown_service"
	OutcomeInternalError = "error"
)
