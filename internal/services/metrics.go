package services

import "github.com/prometheus/client_golang/prometheus"

// transitionsTotal counts state machine calls by op and result
// (changed|noop|error).
var transitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "purchase_transitions_total",
		Help: "Purchase state machine transitions by operation and result.",
	},
	[]string{"op", "result"},
)

func init() {
	prometheus.MustRegister(transitionsTotal)
}

func observeTransition(op string, changed bool, err error) {
	result := "noop"
	switch {
	case err != nil:
		result = "error"
	case changed:
		result = "changed"
	}
	transitionsTotal.WithLabelValues(op, result).Inc()
}
