package mqttbridge

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vestaboard",
			Subsystem: "mqtt",
			Name:      "messages_total",
			Help:      "Inbound MQTT messages handled, by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	connectedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vestaboard",
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "Whether the bridge currently has a broker connection",
		},
	)
)

func init() {
	prometheus.MustRegister(messagesTotal, connectedGauge)
}

func observeHandled(command string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	messagesTotal.WithLabelValues(command, outcome).Inc()
}
