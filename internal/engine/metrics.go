package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "engine",
		Name:      "model_loads_total",
		Help:      "Total number of successful model loads",
	})

	loadFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "engine",
		Name:      "model_load_failures_total",
		Help:      "Total number of failed model loads",
	}, []string{"reason"})

	generationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "engine",
		Name:      "generations_total",
		Help:      "Total number of generation requests accepted by the engine",
	}, []string{"mode"})

	tokensStreamedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "engine",
		Name:      "tokens_streamed_total",
		Help:      "Total number of non-empty token fragments streamed",
	})
)

func init() {
	prometheus.MustRegister(loadsTotal, loadFailuresTotal, generationsTotal, tokensStreamedTotal)
}
