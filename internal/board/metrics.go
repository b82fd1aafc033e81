package board

import "github.com/prometheus/client_golang/prometheus"

var (
	boardWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vestaboard",
			Subsystem: "board",
			Name:      "writes_total",
			Help:      "Total board write attempts",
		},
		[]string{"api", "outcome"},
	)

	boardReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vestaboard",
			Subsystem: "board",
			Name:      "reads_total",
			Help:      "Total board read attempts",
		},
		[]string{"api", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(boardWritesTotal, boardReadsTotal)
}

func observeWrite(api string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	boardWritesTotal.WithLabelValues(api, outcome).Inc()
}

func observeRead(api string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	boardReadsTotal.WithLabelValues(api, outcome).Inc()
}
