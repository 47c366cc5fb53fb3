package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Signals by intake outcome",
		},
		[]string{"result"},
	)

	// Lifecycle transitions detected by reconciliation: entered, target_filled,
	// stopped_out, closed_profit, stop_trailed.
	mtxTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_position_transitions_total",
			Help: "Position lifecycle transitions",
		},
		[]string{"event"},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Positions currently tracked in the store",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxSignals, mtxTransitions, mtxOpenPositions)
}
