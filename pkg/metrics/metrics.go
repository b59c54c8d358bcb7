// Package metrics provides Prometheus metrics for the Vine matching service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchDecisionsTotal tracks match decisions by status and method
	MatchDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "matching",
			Name:      "decisions_total",
			Help:      "Total number of match decisions by status and method",
		},
		[]string{"tenant_id", "status", "method"},
	)

	// MatchDecisionDuration tracks per-line pipeline duration in seconds
	MatchDecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vine",
			Subsystem: "matching",
			Name:      "decision_duration_seconds",
			Help:      "Duration of per-line match decisions in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"tenant_id"},
	)

	// MatchConfidence tracks the confidence distribution of decisions
	MatchConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vine",
			Subsystem: "matching",
			Name:      "confidence",
			Help:      "Confidence distribution of match decisions",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		},
		[]string{"method"},
	)

	// GuardrailViolationsTotal tracks guardrail violations by type
	GuardrailViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "guardrail",
			Name:      "violations_total",
			Help:      "Total number of guardrail violations by type",
		},
		[]string{"tenant_id", "type"},
	)

	// RiskFlagsTotal tracks risk flags attached to decisions
	RiskFlagsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "matching",
			Name:      "risk_flags_total",
			Help:      "Total number of risk flags attached to match decisions",
		},
		[]string{"tenant_id", "type"},
	)

	// AutoCreatesTotal tracks auto-created catalog products by outcome
	AutoCreatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "autocreate",
			Name:      "products_total",
			Help:      "Total number of auto-create attempts by outcome",
		},
		[]string{"tenant_id", "outcome"},
	)

	// WineDBRequestsTotal tracks wine database lookups by outcome
	WineDBRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "winedb",
			Name:      "requests_total",
			Help:      "Total number of wine database lookups by outcome",
		},
		[]string{"outcome"},
	)

	// WineDBRequestDuration tracks wine database lookup duration
	WineDBRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vine",
			Subsystem: "winedb",
			Name:      "request_duration_seconds",
			Help:      "Duration of wine database lookups in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// LinesInFlight tracks lines currently being matched
	LinesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vine",
			Subsystem: "matching",
			Name:      "lines_in_flight",
			Help:      "Number of lines currently being matched",
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vine",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordDecision records a match decision metric
func RecordDecision(tenantID, status, method string, confidence, durationSeconds float64) {
	MatchDecisionsTotal.WithLabelValues(tenantID, status, method).Inc()
	MatchDecisionDuration.WithLabelValues(tenantID).Observe(durationSeconds)
	MatchConfidence.WithLabelValues(method).Observe(confidence)
}

// RecordViolation records a guardrail violation
func RecordViolation(tenantID, violationType string) {
	GuardrailViolationsTotal.WithLabelValues(tenantID, violationType).Inc()
}

// RecordRiskFlag records a risk flag
func RecordRiskFlag(tenantID, flagType string) {
	RiskFlagsTotal.WithLabelValues(tenantID, flagType).Inc()
}

// RecordAutoCreate records an auto-create attempt outcome
func RecordAutoCreate(tenantID, outcome string) {
	AutoCreatesTotal.WithLabelValues(tenantID, outcome).Inc()
}

// RecordWineDBRequest records a wine database lookup
func RecordWineDBRequest(outcome string, durationSeconds float64) {
	WineDBRequestsTotal.WithLabelValues(outcome).Inc()
	WineDBRequestDuration.Observe(durationSeconds)
}
