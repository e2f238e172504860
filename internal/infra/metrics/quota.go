package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(quotaDenialsTotal, quotaRolloversTotal)
}

var (
	quotaDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Chat requests blocked by quota checks, labeled by reason.",
		},
		[]string{"reason"}, // 'expired', 'daily', 'total'
	)

	quotaRolloversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_daily_rollovers_total",
			Help: "Calendar-day daily usage resets performed.",
		},
	)
)

func IncQuotaDenied(reason string) {
	quotaDenialsTotal.WithLabelValues(norm(reason)).Inc()
}

func IncQuotaRollover() {
	quotaRolloversTotal.Inc()
}
