package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespaceIndexer = "indexer"

type Metrics struct {
	height      prometheus.Gauge
	events      *prometheus.CounterVec
	eventErrors *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		height: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceIndexer,
			Name:      "height",
			Help:      "last block height projected into the mirror",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceIndexer,
			Name:      "events_total",
			Help:      "events applied to the mirror",
		}, []string{"type"}),
		eventErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceIndexer,
			Name:      "event_errors_total",
			Help:      "malformed events skipped by the indexer",
		}, []string{"type"}),
	}
}
