// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CreditOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulsecards",
		Name:      "credit_operations_total",
		Help:      "Durable credit mutations by ledger type and outcome.",
	}, []string{"type", "outcome"})

	MarketplacePurchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulsecards",
		Name:      "marketplace_purchases_total",
		Help:      "Marketplace purchase attempts by outcome.",
	}, []string{"outcome"})

	ListingLocksReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulsecards",
		Name:      "listing_locks_expired_total",
		Help:      "Expired listing locks returned to ACTIVE by the sweeper.",
	})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulsecards",
		Name:      "cache_errors_total",
		Help:      "Counter cache failures by operation.",
	}, []string{"op"})

	LedgerMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulsecards",
		Name:      "ledger_mismatches_total",
		Help:      "Users whose ledger sum disagreed with the stored balance.",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulsecards",
	Name:      "job_runs_total",
	Help:      "Scheduled job runs by job and outcome.",
}, []string{"job", "outcome"})
