package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		flowsStartedTotal,
		flowsCompletedTotal,
		flowRetriesTotal,
	)
}

var (
	flowsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flows_started_total",
			Help: "Conversational wizards started, labeled by flow name.",
		},
		[]string{"flow"},
	)

	flowsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flows_completed_total",
			Help: "Conversational wizards completed, labeled by flow name.",
		},
		[]string{"flow"},
	)

	flowRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flow_retries_total",
			Help: "Rejected answers that re-rendered the same wizard step.",
		},
		[]string{"flow"},
	)
)

func IncFlowStarted(flow string) {
	flowsStartedTotal.WithLabelValues(norm(flow)).Inc()
}

func IncFlowCompleted(flow string) {
	flowsCompletedTotal.WithLabelValues(norm(flow)).Inc()
}

func IncFlowRetry(flow string) {
	flowRetriesTotal.WithLabelValues(norm(flow)).Inc()
}
