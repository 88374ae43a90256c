package delivery

import "github.com/prometheus/client_golang/prometheus"

var (
	// tgSent counts Bot API calls by result (success|error) and msg_type
	// (new|edit|private).
	tgSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_messages_total",
			Help: "Telegram messages sent by the outbox deliverer.",
		},
		[]string{"result", "msg_type"},
	)
)

func init() {
	prometheus.MustRegister(tgSent)
}
