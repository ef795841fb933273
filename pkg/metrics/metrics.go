// Package metrics exposes Prometheus counters for the card pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values.
const (
	ClassInternal = "internal"
	ClassExternal = "external"

	VariantFull   = "full"
	VariantSimple = "simple"

	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"

	FailureMetadata = "metadata"
	FailureImage    = "image"
	FailurePost     = "post"
)

// Metrics holds all Prometheus metrics for the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	CardsTotal         *prometheus.CounterVec
	HTMLCacheTotal     *prometheus.CounterVec
	FetchFailuresTotal *prometheus.CounterVec
	TransformsTotal    prometheus.Counter
}

// New registers the metrics on reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CardsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_url_view_cards_total",
			Help: "Cards rendered, by URL class and card variant.",
		}, []string{"class", "variant"}),
		HTMLCacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_url_view_html_cache_total",
			Help: "HTML cache lookups by result.",
		}, []string{"result"}),
		FetchFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_url_view_fetch_failures_total",
			Help: "Soft failures while resolving card data, by kind.",
		}, []string{"kind"}),
		TransformsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "smart_url_view_transforms_total",
			Help: "Content strings passed through the transformer.",
		}),
	}
}

func (m *Metrics) IncCard(class, variant string) {
	if m == nil {
		return
	}
	m.CardsTotal.WithLabelValues(class, variant).Inc()
}

func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.HTMLCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncFailure(kind string) {
	if m == nil {
		return
	}
	m.FetchFailuresTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncTransform() {
	if m == nil {
		return
	}
	m.TransformsTotal.Inc()
}
