package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	// ticksTotal counts drains by result (ok|error).
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_ticks_total",
			Help: "Outbox delivery ticks by result.",
		},
		[]string{"result"},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_tick_duration_seconds",
			Help:    "Duration of outbox delivery ticks in seconds.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 15, 30, 60},
		},
	)

	// entriesTotal counts processed entries by outcome (sent|retried|failed).
	entriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_entries_total",
			Help: "Outbox entries processed by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal, tickDuration, entriesTotal)
}
