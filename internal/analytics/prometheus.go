package analytics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promMetrics *PromMetrics
	promOnce    sync.Once
)

// PromMetrics holds the Prometheus metrics exported by the analytics layer.
type PromMetrics struct {
	RecordsTotal      *prometheus.CounterVec
	AnomaliesTotal    prometheus.Counter
	TuningPassesTotal prometheus.Counter
	ExperimentsActive prometheus.Gauge
}

// NewPromMetrics creates and registers the analytics Prometheus metrics.
// Registration happens once per process to avoid duplicate-collector panics.
func NewPromMetrics() *PromMetrics {
	promOnce.Do(func() {
		promMetrics = &PromMetrics{
			RecordsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "promptpress_records_total",
					Help: "Total compression records appended, by strategy",
				},
				[]string{"strategy"},
			),
			AnomaliesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "promptpress_anomalies_total",
					Help: "Compression records that crossed an anomaly threshold",
				},
			),
			TuningPassesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "promptpress_tuning_passes_total",
					Help: "Adaptive threshold optimization passes executed",
				},
			),
			ExperimentsActive: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "promptpress_experiments_active",
					Help: "Currently active A/B experiments",
				},
			),
		}
	})
	return promMetrics
}
