// Package metrics provides Prometheus metrics for scans and loads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/camden-git/dopplerindex/catalog"
)

const namespace = "dopplerindex"

// Metrics holds all scan metrics. A nil *Metrics, or one built with Enabled
// false, accepts every call and records nothing.
type Metrics struct {
	// Counters
	BatchesCrawled *prometheus.CounterVec
	RecordsFound   *prometheus.CounterVec
	RecordsSkipped *prometheus.CounterVec
	LoadsTotal     *prometheus.CounterVec

	// Gauges
	ActiveWorkers prometheus.Gauge
	ScanRunning   prometheus.Gauge

	// Histograms
	CrawlDuration prometheus.Histogram
	LoadDuration  prometheus.Histogram

	registry *prometheus.Registry
	enabled  bool
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool `yaml:"enabled"`
}

// New creates a new metrics instance with its own registry.
func New(cfg Config) *Metrics {
	m := &Metrics{
		enabled:  cfg.Enabled,
		registry: prometheus.NewRegistry(),
	}

	if !cfg.Enabled {
		return m
	}

	m.BatchesCrawled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_crawled_total",
			Help:      "Batch folders crawled, by outcome",
		},
		[]string{"status"}, // "success", "error"
	)

	m.RecordsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_found_total",
			Help:      "Records produced by the crawler, by entity kind",
		},
		[]string{"kind"},
	)

	m.RecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Records dropped by the loader, by entity kind",
		},
		[]string{"kind"},
	)

	m.LoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Transactional loads, by outcome",
		},
		[]string{"status"}, // "committed", "rolled_back"
	)

	m.ActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "crawl_workers_active",
			Help:      "Number of crawl workers currently started",
		},
	)

	m.ScanRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_running",
			Help:      "1 while a scan is in progress",
		},
	)

	m.CrawlDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_crawl_duration_seconds",
			Help:      "Time to crawl one batch folder",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	m.LoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time spent in the transactional load",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	m.registry.MustRegister(
		m.BatchesCrawled,
		m.RecordsFound,
		m.RecordsSkipped,
		m.LoadsTotal,
		m.ActiveWorkers,
		m.ScanRunning,
		m.CrawlDuration,
		m.LoadDuration,
	)

	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IsEnabled returns true if metrics are enabled.
func (m *Metrics) IsEnabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) RecordBatchCrawled(success bool, duration time.Duration) {
	if !m.IsEnabled() {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.BatchesCrawled.WithLabelValues(status).Inc()
	m.CrawlDuration.Observe(duration.Seconds())
}

func (m *Metrics) SetActiveWorkers(count int) {
	if m.IsEnabled() {
		m.ActiveWorkers.Set(float64(count))
	}
}

func (m *Metrics) SetScanRunning(running bool) {
	if !m.IsEnabled() {
		return
	}
	if running {
		m.ScanRunning.Set(1)
	} else {
		m.ScanRunning.Set(0)
	}
}

// RecordLoad records the outcome of one transactional load. summary is nil
// when the load rolled back.
func (m *Metrics) RecordLoad(summary *catalog.Summary, duration time.Duration) {
	if !m.IsEnabled() {
		return
	}
	m.LoadDuration.Observe(duration.Seconds())
	if summary == nil {
		m.LoadsTotal.WithLabelValues("rolled_back").Inc()
		return
	}
	m.LoadsTotal.WithLabelValues("committed").Inc()
	addCounts(m.RecordsFound, summary.Found)
	addCounts(m.RecordsSkipped, summary.Skipped)
}

func addCounts(vec *prometheus.CounterVec, c catalog.Counts) {
	vec.WithLabelValues("acquisition").Add(float64(c.Acquisitions))
	vec.WithLabelValues("preview").Add(float64(c.Previews))
	vec.WithLabelValues("intermediate").Add(float64(c.Intermediates))
	vec.WithLabelValues("final").Add(float64(c.Finals))
}
