package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	timersScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vestaboard",
			Subsystem: "scheduler",
			Name:      "timers_scheduled_total",
			Help:      "Total timed messages scheduled",
		},
	)

	timersCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vestaboard",
			Subsystem: "scheduler",
			Name:      "timers_cancelled_total",
			Help:      "Total timers cancelled before expiry",
		},
	)

	timersExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vestaboard",
			Subsystem: "scheduler",
			Name:      "timers_expired_total",
			Help:      "Total expired timers by outcome (restored or skipped)",
		},
		[]string{"outcome"},
	)

	activeTimers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vestaboard",
			Subsystem: "scheduler",
			Name:      "active_timers",
			Help:      "Timers currently in scheduled state",
		},
	)
)

func init() {
	prometheus.MustRegister(timersScheduledTotal, timersCancelledTotal, timersExpiredTotal, activeTimers)
}
