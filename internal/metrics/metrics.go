// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsTotal counts payment state changes by method and resulting status.
	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tariconnect",
		Subsystem: "billing",
		Name:      "payments_total",
		Help:      "Payments by method and status (pending on initiation, then completed or failed).",
	}, []string{"method", "status"})

	InvoicesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tariconnect",
		Subsystem: "billing",
		Name:      "invoices_issued_total",
		Help:      "Invoices issued for completed payments.",
	})

	// GatewayRequests tracks gateway round trips by gateway, call and outcome.
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tariconnect",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Payment gateway calls by gateway, call and result.",
	}, []string{"gateway", "call", "result"})

	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tariconnect",
		Subsystem: "gateway",
		Name:      "webhook_requests_total",
		Help:      "Inbound gateway webhooks by gateway and HTTP status.",
	}, []string{"gateway", "status"})

	// TrialSweep counts trial sweep outcomes (purged, skipped, failed).
	TrialSweep = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tariconnect",
		Subsystem: "trials",
		Name:      "sweep_total",
		Help:      "Expired trials processed by the sweep, by outcome.",
	}, []string{"outcome"})

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tariconnect",
		Subsystem: "mirror",
		Name:      "outbox_pending",
		Help:      "Outbox entries waiting to be mirrored.",
	})

	OutboxFailed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tariconnect",
		Subsystem: "mirror",
		Name:      "outbox_failed",
		Help:      "Outbox entries that exhausted their attempts.",
	})

	MirrorWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tariconnect",
		Subsystem: "mirror",
		Name:      "writes_total",
		Help:      "Mirror writes by op and result.",
	}, []string{"op", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tariconnect",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
