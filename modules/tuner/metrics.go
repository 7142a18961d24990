package tuner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "onair"

var (
	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: module,
		Name:      "transitions_total",
		Help:      "Player status changes seen by observers.",
	}, []string{"status"})

	metricSourceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: module,
		Name:      "source_attempts_total",
		Help:      "Attempts to load a stream source.",
	}, []string{"result"})

	metricLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: module,
		Name:      "live",
		Help:      "1 while audio is playing.",
	})

	metricConnectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: module,
		Name:      "connect_failures_total",
		Help:      "Connections that ended in the error state.",
	}, []string{"reason"})
)
