package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aqi_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	FilesDiscovered prometheus.Counter
	FilesRejected   *prometheus.CounterVec // labels: reason={name,tract}
	SeriesLoaded    prometheus.Counter
	SeriesCache     *prometheus.CounterVec // labels: result={hit,miss}

	SensorsBuilt       prometheus.Counter
	SensorsRejected    *prometheus.CounterVec // labels: reason
	SensorsInvalidated prometheus.Counter

	TractsProcessed *prometheus.CounterVec // labels: outcome={success,error}
	TractDuration   prometheus.Histogram
	PipelineRunning prometheus.Gauge

	SinkWrites *prometheus.CounterVec // labels: sink={csv,parquet,kafka}, outcome={success,error}
}

func newMetrics(help bool) *Metrics {
	h := func(s string) string {
		if help {
			return s
		}
		return ""
	}
	return &Metrics{
		FilesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_discovered_total",
			Help:      h("Raw export files found in the data directory."),
		}),
		FilesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_rejected_total",
			Help:      h("Raw export files skipped, by reason."),
		}, []string{"reason"}),
		SeriesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_loaded_total",
			Help:      h("Raw export files parsed into series."),
		}),
		SeriesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_cache_total",
			Help:      h("Series cache lookups by result."),
		}, []string{"result"}),
		SensorsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensors_built_total",
			Help:      h("Sensors assembled from four valid exports."),
		}),
		SensorsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensors_rejected_total",
			Help:      h("Sensor groups that failed validation, by reason."),
		}, []string{"reason"}),
		SensorsInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensors_invalidated_total",
			Help:      h("Outdoor sensors whose AQI record was discarded for excess zero readings."),
		}),
		TractsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracts_processed_total",
			Help:      h("Tracts aggregated by outcome."),
		}, []string{"outcome"}),
		TractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tract_duration_seconds",
			Help:      h("Time spent loading and aggregating one tract."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      h("1 while a pipeline run is in progress, 0 otherwise."),
		}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      h("Report writes by sink and outcome."),
		}, []string{"sink", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FilesDiscovered,
		m.FilesRejected,
		m.SeriesLoaded,
		m.SeriesCache,
		m.SensorsBuilt,
		m.SensorsRejected,
		m.SensorsInvalidated,
		m.TractsProcessed,
		m.TractDuration,
		m.PipelineRunning,
		m.SinkWrites,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered nowhere to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

// Register adds the metrics to reg. Tests use it with a fresh registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
