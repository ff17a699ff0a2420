package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridesharing", Name: "provider_calls_total", Help: "Provider invocations by outcome (ok, http_error, unavailable)"},
		[]string{"service", "outcome"},
	)
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "ridesharing", Name: "provider_call_duration_seconds", Help: "Provider call latency distribution", Buckets: prometheus.DefBuckets},
		[]string{"service"},
	)
	OffersReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridesharing", Name: "offers_received_total", Help: "Raw offers received from the provider"},
		[]string{"service"},
	)
	MalformedOffers = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridesharing", Name: "malformed_offers_total", Help: "Offers normalized with a defaulted field"},
		[]string{"service", "field"},
	)
	// BreakerState encodes the circuit breaker state: 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "ridesharing", Name: "circuit_breaker_state", Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)"},
		[]string{"service"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridesharing", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridesharing",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
