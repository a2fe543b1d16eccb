// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_ledger_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "escrow_ledger_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	EscrowReleases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_ledger_releases_total",
		Help: "Escrow release attempts by outcome",
	}, []string{"outcome"})

	ClearancePromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_ledger_clearance_promoted_total",
		Help: "Wallet transactions promoted from pending clearance to available",
	})

	ClearanceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_ledger_clearance_failures_total",
		Help: "Wallet transactions that could not be promoted after all attempts",
	})

	ClearanceRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "escrow_ledger_clearance_run_duration_seconds",
		Help:    "Duration of clearance sweeps",
		Buckets: prometheus.DefBuckets,
	})

	Cashouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_ledger_cashouts_total",
		Help: "Cashout requests by resulting status",
	}, []string{"status"})
)
