package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheReads counts cache reads by data domain and resulting freshness tier
	CacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsdesk_cache_reads_total",
		Help: "Cache reads by domain and freshness tier",
	}, []string{"domain", "tier"})

	// RefreshAttempts counts upstream refresh attempts by domain and result
	RefreshAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsdesk_refresh_attempts_total",
		Help: "Upstream refresh attempts by domain and result",
	}, []string{"domain", "result"})

	// RefreshDuration observes upstream refresh latency
	RefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oddsdesk_refresh_duration_seconds",
		Help:    "Upstream refresh latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"domain"})

	// SignalsEmitted counts detector output by signal type
	SignalsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsdesk_signals_emitted_total",
		Help: "Discrepancy records and sharp signals emitted",
	}, []string{"type"})

	// Settlements counts settled bets by outcome
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsdesk_settlements_total",
		Help: "Settled bets by outcome",
	}, []string{"outcome"})
)

// Handler exposes the prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
