package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway request counters, labelled by endpoint and outcome.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skycast",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "API requests processed by the gateway, by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skycast",
		Subsystem: "gateway",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the rate limiter, by endpoint.",
	}, []string{"endpoint"})

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skycast",
		Subsystem: "audit",
		Name:      "write_failures_total",
		Help:      "Audit log or association writes that failed.",
	})

	UpstreamCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skycast",
		Subsystem: "weather",
		Name:      "cache_hits_total",
		Help:      "Upstream weather responses served from cache, by kind.",
	}, []string{"kind"})
)

// Outcome label values
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeRateLimited  = "rate_limited"
	OutcomeError        = "error"
)
