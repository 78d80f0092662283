package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GateDecisions counts entitlement decisions by operation, identity kind and outcome.
	GateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oncoassist_gate_decisions_total",
		Help: "Total number of entitlement gate decisions",
	}, []string{"operation", "identity", "outcome"})
	// GateRecordFailures counts counter writes that failed and were swallowed.
	GateRecordFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oncoassist_gate_record_failures_total",
		Help: "Total number of usage counter writes that failed",
	}, []string{"identity"})
	// GateStoreReadFailures counts counter reads that failed and were treated as zero.
	GateStoreReadFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oncoassist_gate_store_read_failures_total",
		Help: "Total number of usage counter reads that failed",
	}, []string{"identity"})
	// CollaboratorRequests counts calls to the LLM and inference backends.
	CollaboratorRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oncoassist_collaborator_requests_total",
		Help: "Total number of requests sent to external collaborators",
	}, []string{"collaborator", "result"})
	CollaboratorLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oncoassist_collaborator_request_duration_seconds",
		Help:    "Latency of requests sent to external collaborators",
		Buckets: prometheus.DefBuckets,
	}, []string{"collaborator"})
	PredictionCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oncoassist_prediction_cache_total",
		Help: "Prediction cache lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(GateDecisions)
	prometheus.MustRegister(GateRecordFailures)
	prometheus.MustRegister(GateStoreReadFailures)
	prometheus.MustRegister(CollaboratorRequests)
	prometheus.MustRegister(CollaboratorLatency)
	prometheus.MustRegister(PredictionCache)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
