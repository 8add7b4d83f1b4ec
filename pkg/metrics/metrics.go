// Package metrics defines the Prometheus collectors exported by batch runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/algomatic/regime-backtest/pkg/engine"
)

// Outcome labels for Backtests.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeCached = "cached"
)

// Metrics holds all backtest collectors.
type Metrics struct {
	Backtests   *prometheus.CounterVec
	Trades      *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	InFlight    prometheus.Gauge
	CacheLookup *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Backtests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_runs_total",
				Help: "Backtests finished, by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_trades_total",
				Help: "Simulated trades closed, by direction and exit reason",
			},
			[]string{"direction", "exit_reason"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backtest_run_duration_seconds",
				Help:    "Wall time of one symbol's backtest",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"strategy"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backtest_symbols_in_flight",
				Help: "Symbols currently being backtested",
			},
		),
		CacheLookup: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_cache_lookups_total",
				Help: "Report cache lookups, by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.Backtests, m.Trades, m.RunDuration, m.InFlight, m.CacheLookup)
	return m
}

// ObserveReport records a finished run and its trades.
func (m *Metrics) ObserveReport(strategy string, rep *engine.Report, elapsed time.Duration) {
	m.Backtests.WithLabelValues(strategy, OutcomeOK).Inc()
	m.RunDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	for _, t := range rep.ClosedTrades {
		m.Trades.WithLabelValues(string(t.Direction), string(t.ExitReason)).Inc()
	}
}

// ObserveFailure records a run that returned an error.
func (m *Metrics) ObserveFailure(strategy string) {
	m.Backtests.WithLabelValues(strategy, OutcomeFailed).Inc()
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(strategy string, hit bool) {
	if hit {
		m.CacheLookup.WithLabelValues("hit").Inc()
		m.Backtests.WithLabelValues(strategy, OutcomeCached).Inc()
		return
	}
	m.CacheLookup.WithLabelValues("miss").Inc()
}
