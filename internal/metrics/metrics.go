// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ambassador_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ambassador_http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ReferralEventsTotal считает реферальные события по типу и исходу.
	ReferralEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ambassador_referral_events_total",
			Help: "Referral events processed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	MonoyiCreditedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ambassador_monoyi_credited_total",
			Help: "Monoyi credited to ambassador balances",
		},
	)

	MonoyiPaidOutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ambassador_monoyi_paid_out_total",
			Help: "Monoyi debited by approved payouts",
		},
	)

	PayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ambassador_payouts_total",
			Help: "Payout requests by resulting status",
		},
		[]string{"status"},
	)
)

// Исходы обработки события.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)
