// Package metrics exposes Prometheus counters for the webhook reconciliation
// path. Reconciliation misses and checkout resolution outcomes are log-only
// from the caller's point of view, so the counters are the operational signal
// that best-effort processing is losing data.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout resolution outcomes.
const (
	CheckoutResolved  = "resolved"
	CheckoutExhausted = "exhausted"
	CheckoutSkipped   = "skipped"
)

// Metrics holds the billing-sync counters.
type Metrics struct {
	EventsReceived       *prometheus.CounterVec
	EventsIgnored        prometheus.Counter
	HandlerFailures      *prometheus.CounterVec
	ReconciliationMisses *prometheus.CounterVec
	CheckoutResolutions  *prometheus.CounterVec
}

// New registers the billing-sync counters with the given registry.
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		EventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_received_total",
				Help: "Verified webhook deliveries recorded, by event type",
			},
			[]string{"event_type"},
		),
		EventsIgnored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_ignored_total",
				Help: "Verified deliveries with an event type this service does not handle",
			},
		),
		HandlerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_handler_failures_total",
				Help: "Event handler failures after the audit row was committed, by event type",
			},
			[]string{"event_type"},
		),
		ReconciliationMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_reconciliation_misses_total",
				Help: "Updates or deletes referencing a subscription that does not exist locally, by operation",
			},
			[]string{"operation"},
		),
		CheckoutResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_checkout_resolutions_total",
				Help: "Checkout completion resolution outcomes",
			},
			[]string{"outcome"},
		),
	}
}
