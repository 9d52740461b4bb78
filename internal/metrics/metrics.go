// Package metrics defines Prometheus metrics for covenant-monitor.
//
// All metrics are registered with the default registry and served by the
// /metrics endpoint of the serve command.
//
// Metric naming follows Prometheus conventions:
//   - covenant_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RefreshCyclesTotal counts scheduler cycles by outcome (ok, persist_failed).
	RefreshCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "covenant_refresh_cycles_total",
			Help: "Total metric refresh cycles by outcome.",
		},
		[]string{"outcome"},
	)

	// RefreshCycleDurationSeconds is a histogram of refresh cycle duration.
	RefreshCycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "covenant_refresh_cycle_duration_seconds",
			Help:    "Duration of metric refresh cycles in seconds.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// CovenantsRefreshedTotal counts per-covenant refresh results
	// (refreshed, metric_fetch_failed, formula_failed).
	CovenantsRefreshedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "covenant_covenants_refreshed_total",
			Help: "Total covenants processed by the refresh scheduler by result.",
		},
		[]string{"result"},
	)

	// AlertTransitionsTotal counts alert lifecycle changes by kind and alert type.
	AlertTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "covenant_alert_transitions_total",
			Help: "Total alert transitions by kind and alert type.",
		},
		[]string{"kind", "type"},
	)

	// WebhookDeliveriesTotal counts alert webhook deliveries by result.
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "covenant_webhook_deliveries_total",
			Help: "Total alert webhook deliveries by result.",
		},
		[]string{"result"},
	)

	// ExtractionsTotal counts document extractions by outcome.
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "covenant_extractions_total",
			Help: "Total document extractions by outcome.",
		},
		[]string{"outcome"},
	)

	// CovenantsExtractedTotal counts covenants persisted from extraction.
	CovenantsExtractedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "covenant_covenants_extracted_total",
			Help: "Total covenants persisted from document extraction.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RefreshCyclesTotal,
		RefreshCycleDurationSeconds,
		CovenantsRefreshedTotal,
		AlertTransitionsTotal,
		WebhookDeliveriesTotal,
		ExtractionsTotal,
		CovenantsExtractedTotal,
	)
}

// RecordRefreshCycle records a finished refresh cycle.
func RecordRefreshCycle(outcome string, duration time.Duration) {
	RefreshCyclesTotal.WithLabelValues(outcome).Inc()
	RefreshCycleDurationSeconds.Observe(duration.Seconds())
}

// RecordCovenantRefresh records one covenant's refresh result.
func RecordCovenantRefresh(result string) {
	CovenantsRefreshedTotal.WithLabelValues(result).Inc()
}

// RecordAlertTransition records an alert created, updated or resolved.
func RecordAlertTransition(kind, alertType string) {
	AlertTransitionsTotal.WithLabelValues(kind, alertType).Inc()
}

// RecordWebhookDelivery records a webhook attempt.
func RecordWebhookDelivery(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	WebhookDeliveriesTotal.WithLabelValues(result).Inc()
}

// RecordExtraction records an extraction outcome and the covenants it stored.
func RecordExtraction(outcome string, covenants int) {
	ExtractionsTotal.WithLabelValues(outcome).Inc()
	CovenantsExtractedTotal.Add(float64(covenants))
}
