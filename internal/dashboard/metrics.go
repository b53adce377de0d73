package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Фасеты, свернутые в ноль из-за ошибки или таймаута хранилища
	FacetUnavailable *prometheus.CounterVec

	// Полное время сборки сводки
	SummaryDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		FacetUnavailable: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dlp_dashboard_facet_unavailable_total",
			Help: "Dashboard facets that degraded to zero because the log store failed.",
		}, []string{"facet"}),

		SummaryDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dlp_dashboard_summary_duration_seconds",
			Help:    "Time spent assembling a dashboard summary.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
}
