package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	scheduleMutationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wiiks",
		Subsystem: "schedules",
		Name:      "last_mutation_timestamp_seconds",
		Help:      "Unix timestamp of the most recent group or activity change committed to the store.",
	})
	layoutComputations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wiiks",
		Subsystem: "timetable",
		Name:      "layout_computations_total",
		Help:      "Week layouts computed, by overlap policy.",
	}, []string{"policy"})
	layoutCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wiiks",
		Subsystem: "timetable",
		Name:      "layout_cache_lookups_total",
		Help:      "Layout cache lookups by result (hit, miss, error).",
	}, []string{"result"})
	layoutDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wiiks",
		Subsystem: "timetable",
		Name:      "layout_duration_seconds",
		Help:      "Time spent laying out one week.",
		Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})
	exportsRendered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wiiks",
		Subsystem: "export",
		Name:      "rendered_total",
		Help:      "Timetable exports rendered, by format and outcome.",
	}, []string{"format", "outcome"})
)

func init() {
	prometheus.MustRegister(scheduleMutationGauge, layoutComputations, layoutCacheLookups, layoutDuration, exportsRendered)
}

// RecordScheduleMutation updates the mutation watermark gauge.
func RecordScheduleMutation(ts time.Time) {
	if ts.IsZero() {
		return
	}
	scheduleMutationGauge.Set(float64(ts.Unix()))
}

// RecordLayout counts one computed layout and its duration.
func RecordLayout(policy string, took time.Duration) {
	layoutComputations.WithLabelValues(policy).Inc()
	layoutDuration.Observe(took.Seconds())
}

// RecordLayoutCache counts a cache lookup outcome.
func RecordLayoutCache(result string) {
	layoutCacheLookups.WithLabelValues(result).Inc()
}

// RecordExport counts one export attempt.
func RecordExport(format string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	exportsRendered.WithLabelValues(format, outcome).Inc()
}
