package investigation

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	mSourceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "scamshield", Subsystem: "source", Name: "requests_total", Help: "Source calls by source and outcome."},
		[]string{"source", "outcome"},
	)
	mInvestigations = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "scamshield", Subsystem: "engine", Name: "investigations_total", Help: "Total investigations run."},
	)
	mCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "scamshield", Subsystem: "engine", Name: "investigation_cache_hits_total", Help: "Investigations served from the result cache."},
	)
	mProcessing = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scamshield", Subsystem: "engine", Name: "processing_seconds",
			Help:    "End-to-end investigation duration.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 45, 90},
		},
	)
	mHighRisk = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "scamshield", Subsystem: "engine", Name: "high_risk_detections_total", Help: "Investigations that produced a HIGH or CRITICAL verdict."},
	)
)

func init() {
	_ = prometheus.Register(mSourceRequests)
	_ = prometheus.Register(mInvestigations)
	_ = prometheus.Register(mCacheHits)
	_ = prometheus.Register(mProcessing)
	_ = prometheus.Register(mHighRisk)
}
