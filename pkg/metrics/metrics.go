// Package metrics defines the Prometheus collectors of the statement engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Parse outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// UnknownTemplate labels parses whose template could not be loaded, so
// arbitrary caller-supplied identifiers do not create new series.
const UnknownTemplate = "unknown"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ParsesTotal       *prometheus.CounterVec
	ParseDuration     *prometheus.HistogramVec
	TransactionsTotal *prometheus.CounterVec
	CacheRefreshes    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ParsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement",
			Name:      "parses_total",
			Help:      "Statement parses by template and outcome.",
		}, []string{"template", "outcome"}),
		ParseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statement",
			Name:      "parse_duration_seconds",
			Help:      "Time spent parsing one statement.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"template"}),
		TransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement",
			Name:      "transactions_total",
			Help:      "Transactions emitted by template.",
		}, []string{"template"}),
		CacheRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statement",
			Name:      "cache_refreshes_total",
			Help:      "Scheduled template cache refreshes.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.ParsesTotal, m.ParseDuration, m.TransactionsTotal, m.CacheRefreshes)
	return m
}

// ObserveParse records one parse.
func (m *Metrics) ObserveParse(templateID string, ok bool, seconds float64, transactions int) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	m.ParsesTotal.WithLabelValues(templateID, outcome).Inc()
	m.ParseDuration.WithLabelValues(templateID).Observe(seconds)
	if transactions > 0 {
		m.TransactionsTotal.WithLabelValues(templateID).Add(float64(transactions))
	}
}

// CacheRefreshed counts one scheduled refresh.
func (m *Metrics) CacheRefreshed() {
	if m == nil {
		return
	}
	m.CacheRefreshes.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
