// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the refresh engine reports.
type Metrics struct {
	RepairsTotal     *prometheus.CounterVec
	RejectsTotal     *prometheus.CounterVec
	TriageActions    *prometheus.CounterVec
	SnapshotsWritten prometheus.Counter
	CarryForwards    prometheus.Counter
	AssetDuration    prometheus.Histogram
	RunsTotal        *prometheus.CounterVec
}

// New builds the metric set and registers it on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RepairsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barforge_repairs_total",
				Help: "Canonicalization repairs applied, by asset",
			},
			[]string{"asset"},
		),
		RejectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barforge_rejects_total",
				Help: "Canonicalization rejects, by asset",
			},
			[]string{"asset"},
		),
		TriageActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barforge_triage_actions_total",
				Help: "Triage actions taken per (asset, tf) pair, by action",
			},
			[]string{"action"},
		),
		SnapshotsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "barforge_snapshots_written_total",
				Help: "Snapshot rows written across all runs",
			},
		),
		CarryForwards: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "barforge_carry_forwards_total",
				Help: "Appends served by the constant-time carry-forward path",
			},
		),
		AssetDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "barforge_asset_refresh_seconds",
				Help:    "Wall time to refresh one asset across all timeframes",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barforge_runs_total",
				Help: "Refresh runs by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.RepairsTotal, m.RejectsTotal, m.TriageActions,
		m.SnapshotsWritten, m.CarryForwards, m.AssetDuration, m.RunsTotal,
	)
	return m
}
