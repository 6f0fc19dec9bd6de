package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the sync pipeline.
type Metrics struct {
	StationsSynced       prometheus.Counter
	MeasurementsInserted *prometheus.CounterVec // label: series={stan,przeplyw}
	MeasurementsSkipped  *prometheus.CounterVec // label: series={stan,przeplyw}
	WarningsInserted     prometheus.Counter
	SyncErrors           *prometheus.CounterVec // label: stage={stations,measurements,warnings}
	SyncRunning          prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		StationsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_monitoring",
			Name:      "stations_synced_total",
			Help:      "Stations seen during directory synchronization.",
		}),
		MeasurementsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_monitoring",
			Name:      "measurements_inserted_total",
			Help:      "Newly stored measurements by series.",
		}, []string{"series"}),
		MeasurementsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_monitoring",
			Name:      "measurements_skipped_total",
			Help:      "Measurements skipped as duplicates by series.",
		}, []string{"series"}),
		WarningsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_monitoring",
			Name:      "warnings_inserted_total",
			Help:      "Newly stored hydrological warnings.",
		}),
		SyncErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_monitoring",
			Name:      "sync_errors_total",
			Help:      "Synchronization failures by stage.",
		}, []string{"stage"}),
		SyncRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_monitoring",
			Name:      "sync_running",
			Help:      "Background synchronization jobs currently in flight.",
		}),
	}
}

// NewMetrics creates and registers all sync metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.StationsSynced,
		m.MeasurementsInserted,
		m.MeasurementsSkipped,
		m.WarningsInserted,
		m.SyncErrors,
		m.SyncRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
