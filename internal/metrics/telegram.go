package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		telegramHandlerTotal,
		telegramRateLimitTriggeredTotal,
		telegramSendFailuresTotal,
	)
}

var (
	telegramHandlerTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_handler_total",
			Help: "Handled updates by handler and status.",
		},
		[]string{"handler", "status"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	telegramSendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_send_failures_total",
			Help: "Outbound Bot API calls that failed after retries, by error kind.",
		},
		[]string{"kind"},
	)
)

func IncHandler(handler, status string) {
	telegramHandlerTotal.WithLabelValues(norm(handler), norm(status)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncSendFailure(kind string) {
	telegramSendFailuresTotal.WithLabelValues(norm(kind)).Inc()
}
