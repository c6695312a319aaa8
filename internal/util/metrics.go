package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CreditsGrantedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_granted_total",
		Help: "Total credits granted to accounts, by transaction kind",
	}, []string{"kind"})

	CreditsDebitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_debited_total",
		Help: "Total credits debited from accounts, by transaction kind",
	}, []string{"kind"})

	InsufficientBalanceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insufficient_balance_rejections_total",
		Help: "Total debits rejected for insufficient balance",
	})

	AccountsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accounts_created_total",
		Help: "Total credit accounts created",
	})

	PaymentsInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_initiated_total",
		Help: "Total credit purchase attempts initiated",
	})

	PaymentsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_completed_total",
		Help: "Total credit purchases completed",
	})

	PaymentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total credit purchases failed, by reason",
	}, []string{"reason"})

	PaymentsRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_refunded_total",
		Help: "Total completed payments refunded",
	})

	GatewayLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of external payment gateway calls",
		Buckets: prometheus.DefBuckets,
	})

	WebhooksRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhooks_rejected_total",
		Help: "Total gateway webhooks rejected for invalid signatures",
	})

	WebhooksDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhooks_duplicate_total",
		Help: "Total gateway webhooks skipped as already processed",
	})

	MeetingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meetings_created_total",
		Help: "Total meetings created",
	})

	MeetingsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meetings_completed_total",
		Help: "Total meetings completed and settled",
	})

	MeetingsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetings_cancelled_total",
		Help: "Total meetings cancelled or marked no-show, by outcome",
	}, []string{"outcome"})

	SettlementFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_failed_total",
		Help: "Total meeting settlements that failed, by reason",
	}, []string{"reason"})

	SettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_latency_seconds",
		Help:    "Latency of meeting settlement transactions",
		Buckets: prometheus.DefBuckets,
	})

	NotificationsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_consumed_total",
		Help: "Total notification events consumed, by event type",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
