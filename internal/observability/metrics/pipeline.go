package metrics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks ingestion and aggregation health.
type PipelineMetrics struct {
	ingestedEvents  *prometheus.CounterVec
	usageIncrements *prometheus.CounterVec
	outboxBacklog   prometheus.Gauge
	aggregationLag  prometheus.Histogram
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the process-wide pipeline metrics.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the process-wide pipeline metrics, registering
// them on first use.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest clears the singleton between tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "lumen"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	ingestedEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "lumen_ingest_events_total",
			Help:        "Ingestion outcomes by result (persisted, sampled_out, rejected).",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	usageIncrements := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "lumen_usage_increments_total",
			Help:        "Usage counter increments by aggregation mode (live, backfill).",
			ConstLabels: constLabels,
		},
		[]string{"mode"},
	)

	outboxBacklog := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "lumen_outbox_backlog_total",
			Help:        "Persisted events not yet applied to usage counters.",
			ConstLabels: constLabels,
		},
	)

	aggregationLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "lumen_aggregation_lag_seconds",
			Help: "Delay between event persistence and its usage counter increment.",
			Buckets: []float64{
				0.1,
				0.5,
				1,
				5,
				30,
				60,
				300,
				900,
			},
			ConstLabels: constLabels,
		},
	)

	// Re-registration after a test reset is tolerated; anything else is a
	// programming error, matching MustRegister semantics.
	for _, collector := range []prometheus.Collector{ingestedEvents, usageIncrements, outboxBacklog, aggregationLag} {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}

	return &PipelineMetrics{
		ingestedEvents:  ingestedEvents,
		usageIncrements: usageIncrements,
		outboxBacklog:   outboxBacklog,
		aggregationLag:  aggregationLag,
	}
}

// IncIngested records one ingestion outcome.
func (m *PipelineMetrics) IncIngested(result string) {
	if m == nil {
		return
	}
	m.ingestedEvents.WithLabelValues(result).Inc()
}

// IncUsageIncrement records one usage counter increment.
func (m *PipelineMetrics) IncUsageIncrement(mode string) {
	if m == nil {
		return
	}
	m.usageIncrements.WithLabelValues(mode).Inc()
}

// SetOutboxBacklog records the current unapplied outbox depth.
func (m *PipelineMetrics) SetOutboxBacklog(depth int64) {
	if m == nil {
		return
	}
	m.outboxBacklog.Set(float64(depth))
}

// ObserveAggregationLag records how far behind the live aggregation runs.
func (m *PipelineMetrics) ObserveAggregationLag(lag time.Duration) {
	if m == nil || lag < 0 {
		return
	}
	m.aggregationLag.Observe(lag.Seconds())
}
