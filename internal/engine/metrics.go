package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени заняла детекция (включая вызов модели)
	RequestDuration *prometheus.HistogramVec

	// Traffic: запросы по итоговому действию (BLOCK, ALLOW, NONE)
	TotalRequests *prometheus.CounterVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - закрыт, 0.5 - полуоткрыт, 1 - открыт)
	CircuitBreakerState *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dlp_detect_duration_seconds",
			Help:    "Histogram of detection latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		TotalRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dlp_detect_requests_total",
			Help: "Total number of processed detection requests by resulting action.",
		}, []string{"action"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dlp_detect_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: invalid_input, maintenance, detector, rate_limit, circuit_open, record_dropped, event_publish

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "dlp_detector_circuit_breaker_state",
			Help: "Current state of the detector circuit breaker (0=closed, 0.5=half-open, 1=open).",
		}, []string{"detector"}),
	}
}
