package monitor

import (
	"github.com/asterfi/0xLIQD-Bybit/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mtxPositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dca_positions",
			Help: "DCA positions by state",
		},
		[]string{"state"}, // active|completed_lifetime
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dca_orders_total",
			Help: "Ladder orders by outcome",
		},
		[]string{"outcome"}, // placed|filled|failed|cancelled
	)

	mtxLoadScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dca_load_score",
			Help: "Engine load score on a 0-100 scale",
		},
	)

	mtxCacheHitRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dca_atr_cache_hit_rate",
			Help: "ATR cache hit rate in [0,1]",
		},
	)

	mtxOrderLatency = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dca_order_latency_ms",
			Help: "Rolling average order submission latency",
		},
	)

	mtxVolLatency = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dca_volatility_latency_ms",
			Help: "Rolling average ATR computation latency",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxPositions, mtxOrders, mtxLoadScore,
		mtxCacheHitRate, mtxOrderLatency, mtxVolLatency)
}

// publishMetrics pushes one sample into the Prometheus collectors. prior
// holds the counter values already exported; only deltas are added.
func publishMetrics(src LoadSource, stats, prior domain.PerformanceStats, score, orderLatMs, volLatMs float64) {
	mtxPositions.WithLabelValues("active").Set(float64(src.CountActive()))
	mtxPositions.WithLabelValues("completed_lifetime").Set(float64(stats.PositionsCompleted))

	mtxOrders.WithLabelValues("placed").Add(float64(stats.OrdersPlaced - prior.OrdersPlaced))
	mtxOrders.WithLabelValues("filled").Add(float64(stats.OrdersFilled - prior.OrdersFilled))
	mtxOrders.WithLabelValues("failed").Add(float64(stats.OrdersFailed - prior.OrdersFailed))
	mtxOrders.WithLabelValues("cancelled").Add(float64(stats.OrdersCancelled - prior.OrdersCancelled))

	mtxLoadScore.Set(score)
	mtxCacheHitRate.Set(stats.CacheHitRate())
	mtxOrderLatency.Set(orderLatMs)
	mtxVolLatency.Set(volLatMs)
}
