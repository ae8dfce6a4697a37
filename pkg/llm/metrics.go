package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invokeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evalstudio",
		Subsystem: "llm",
		Name:      "invocation_duration_seconds",
		Help:      "Duration of model invocations",
	}, []string{"provider", "model"})

	invokeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalstudio",
		Subsystem: "llm",
		Name:      "invocation_failures_total",
		Help:      "Number of failed model invocations",
	}, []string{"provider", "model"})
)
