// Package metrics holds the Prometheus collectors of the ingestion service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Record outcomes used as the "outcome" label of RecordsTotal.
const (
	OutcomeAdmitted   = "admitted"
	OutcomeKept       = "duplicate_kept"
	OutcomeReplaced   = "replaced"
	OutcomeFiltered   = "filtered"
	OutcomeInvalid    = "invalid"
	OutcomeFailed     = "failed"
	OutcomeBacklogged = "backlogged"
)

// Metrics groups the collectors. Each instance owns its registry so tests
// can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	RecordsTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	BreakerState  *prometheus.GaugeVec
	BacklogSize   prometheus.Gauge
	CyclesTotal   *prometheus.CounterVec
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_records_total",
			Help: "Records processed by source and outcome",
		}, []string{"source", "outcome"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_fetch_duration_seconds",
			Help:    "Source fetch latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}, []string{"source"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ingest_breaker_state",
			Help: "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
		}, []string{"source"}),
		BacklogSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_backlog_size",
			Help: "Postings waiting to be replayed after a store failure",
		}),
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Completed ingestion cycles by result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
