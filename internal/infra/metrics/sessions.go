package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(sessionsLive, sessionsSweptTotal)
}

var (
	sessionsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_sessions_live",
			Help: "Session records currently held in memory across all kinds.",
		},
	)

	sessionsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_sessions_swept_total",
			Help: "Session records evicted by the TTL sweeper.",
		},
	)
)

func SetSessionsLive(n int) {
	sessionsLive.Set(float64(n))
}

func AddSessionsSwept(n int) {
	sessionsSweptTotal.Add(float64(n))
}
