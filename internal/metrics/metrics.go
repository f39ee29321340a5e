package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academics_validation_total",
		Help: "Context, scope and relationship validations by kind and result",
	}, []string{"kind", "result"})

	workflowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academics_workflow_operations_total",
		Help: "Enrollment, assignment, promotion and grade status writes by outcome",
	}, []string{"operation", "outcome"})

	summaryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "academics_summary_duration_seconds",
		Help:    "Time spent building analytics summaries, fetch included",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"kind"})

	summaryCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academics_summary_cache_total",
		Help: "Summary cache lookups by result",
	}, []string{"result"})
)

func Validation(kind string, valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	validationTotal.WithLabelValues(kind, result).Inc()
}

// Workflow records one workflow call. outcome is "ok", a domain error code, or "error".
func Workflow(operation, outcome string) {
	workflowTotal.WithLabelValues(operation, outcome).Inc()
}

func SummaryDuration(kind string, started time.Time) {
	summaryDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

func CacheLookup(hit bool) {
	if hit {
		summaryCache.WithLabelValues("hit").Inc()
		return
	}
	summaryCache.WithLabelValues("miss").Inc()
}
