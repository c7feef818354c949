package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: сколько предложений вошло в конвейер
	ProposalsTotal *prometheus.CounterVec

	// Latency: от приема предложения до записи исхода
	DecisionDuration *prometheus.HistogramVec

	// Сколько активных записей вытеснено в STALE
	StaleTotal prometheus.Counter

	// Saturation: состояние Circuit Breaker применителя (0 - ок, 1 - выбило)
	BreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ProposalsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pricegate_proposals_total",
			Help: "Total number of processed price proposals by outcome.",
		}, []string{"outcome"}), // outcome: approved, rejected, applied_auto, apply_failed, frozen, malformed

		DecisionDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricegate_decision_duration_seconds",
			Help:    "Histogram of proposal processing latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		StaleTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pricegate_stale_total",
			Help: "Total number of decisions superseded into STALE.",
		}),

		BreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pricegate_apply_breaker_state",
			Help: "Current state of the price-apply circuit breaker (0=closed, 1=open).",
		}),
	}
}
