// Package metrics exposes Prometheus instrumentation for the settlement
// engine and its HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Registry holds all rankforum Prometheus metrics.
type Registry struct {
	// Settlement metrics
	Settlements        *prometheus.CounterVec
	SettlementDuration *prometheus.HistogramVec
	Bans               prometheus.Counter
	Wipeouts           prometheus.Counter

	// Engine population metrics
	Accounts prometheus.Gauge
	Targets  prometheus.Gauge

	// Score cache metrics
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	CacheHitRatio prometheus.Gauge

	// HTTP surface metrics
	RequestDuration *prometheus.HistogramVec
	ActiveClients   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewRegistry creates the metric set and registers it. A nil registry
// registers against the process-global default.
func NewRegistry(reg *prometheus.Registry) *Registry {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer = reg
		gatherer = reg
	}

	m := &Registry{
		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankforum_settlements_total",
				Help: "Total vote settlements by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),

		SettlementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankforum_settlement_duration_seconds",
				Help:    "Duration of vote settlement critical sections",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"outcome"},
		),

		Bans: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rankforum_bans_total",
				Help: "Total authors banned by downvote settlement",
			},
		),

		Wipeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rankforum_wipeouts_total",
				Help: "Total settlements that drove a positive score to zero",
			},
		),

		Accounts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankforum_accounts",
				Help: "Number of registered accounts",
			},
		),

		Targets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankforum_targets",
				Help: "Number of posts and comments",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankforum_cache_hits_total",
				Help: "Score cache hits by tier",
			},
			[]string{"tier"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankforum_cache_misses_total",
				Help: "Score cache misses by tier",
			},
			[]string{"tier"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankforum_cache_hit_ratio",
				Help: "Score cache hit ratio (0.0 to 1.0)",
			},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankforum_http_request_duration_seconds",
				Help:    "HTTP request duration by route and status",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"route", "method", "status"},
		),

		ActiveClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankforum_event_clients",
				Help: "Connected websocket event subscribers",
			},
		),

		gatherer: gatherer,
	}

	registerer.MustRegister(
		m.Settlements,
		m.SettlementDuration,
		m.Bans,
		m.Wipeouts,
		m.Accounts,
		m.Targets,
		m.CacheHits,
		m.CacheMisses,
		m.CacheHitRatio,
		m.RequestDuration,
		m.ActiveClients,
	)

	return m
}

// SettleTimer times one settlement critical section.
type SettleTimer struct {
	metrics   *Registry
	direction string
	start     time.Time
}

func (m *Registry) StartSettleTimer(direction string) *SettleTimer {
	return &SettleTimer{metrics: m, direction: direction, start: time.Now()}
}

// Stop records the settlement with its outcome.
func (t *SettleTimer) Stop(outcome string) {
	duration := time.Since(t.start)
	t.metrics.Settlements.WithLabelValues(t.direction, outcome).Inc()
	t.metrics.SettlementDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	log.Debug().
		Str("direction", t.direction).
		Str("outcome", outcome).
		Dur("duration", duration).
		Msg("Settlement recorded")
}

// RecordBan counts a settlement-triggered ban.
func (m *Registry) RecordBan() {
	m.Bans.Inc()
}

// RecordWipeout counts a score clamped at zero.
func (m *Registry) RecordWipeout() {
	m.Wipeouts.Inc()
}

// RecordCacheHit counts a hit and refreshes the ratio gauge.
func (m *Registry) RecordCacheHit(tier string) {
	m.CacheHits.WithLabelValues(tier).Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss counts a miss and refreshes the ratio gauge.
func (m *Registry) RecordCacheMiss(tier string) {
	m.CacheMisses.WithLabelValues(tier).Inc()
	m.updateCacheHitRatio()
}

var cacheTiers = []string{"redis", "local"}

func (m *Registry) updateCacheHitRatio() {
	sample := &io_prometheus_client.Metric{}

	totalHits := 0.0
	totalMisses := 0.0
	for _, tier := range cacheTiers {
		if hit, err := m.CacheHits.GetMetricWithLabelValues(tier); err == nil {
			if err := hit.Write(sample); err == nil {
				totalHits += sample.GetCounter().GetValue()
			}
		}
		if miss, err := m.CacheMisses.GetMetricWithLabelValues(tier); err == nil {
			if err := miss.Write(sample); err == nil {
				totalMisses += sample.GetCounter().GetValue()
			}
		}
	}

	if total := totalHits + totalMisses; total > 0 {
		m.CacheHitRatio.Set(totalHits / total)
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
