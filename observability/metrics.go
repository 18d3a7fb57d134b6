package observability

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rentalMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	reserve     *prometheus.GaugeVec
	usedReserve *prometheus.GaugeVec
	totalShares *prometheus.GaugeVec
}

var (
	rentalMetricsOnce sync.Once
	rentalRegistry    *rentalMetrics
)

// RentalMetrics returns the lazily-initialised metrics registry used to record
// pool activity and reserve levels.
func RentalMetrics() *rentalMetrics {
	rentalMetricsOnce.Do(func() {
		rentalRegistry = &rentalMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rentpool",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rentpool",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rentpool",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			reserve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "rentpool",
				Subsystem: "pool",
				Name:      "reserve",
				Help:      "Current pool reserve in base units, segmented by token.",
			}, []string{"token"}),
			usedReserve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "rentpool",
				Subsystem: "pool",
				Name:      "used_reserve",
				Help:      "Reserve currently committed to open loans, segmented by token.",
			}, []string{"token"}),
			totalShares: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "rentpool",
				Subsystem: "pool",
				Name:      "total_shares",
				Help:      "Outstanding liquidity shares, segmented by token.",
			}, []string{"token"}),
		}
		prometheus.MustRegister(
			rentalRegistry.requests,
			rentalRegistry.errors,
			rentalRegistry.latency,
			rentalRegistry.reserve,
			rentalRegistry.usedReserve,
			rentalRegistry.totalShares,
		)
	})
	return rentalRegistry
}

// ObserveRequest records the outcome of a JSON-RPC request. A zero code means
// the call succeeded.
func (m *rentalMetrics) ObserveRequest(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// SetPoolTotals publishes the pool's reserve totals. Values larger than what a
// float64 can represent exactly lose precision in the gauge only.
func (m *rentalMetrics) SetPoolTotals(token string, reserve, used, shares *big.Int) {
	if m == nil {
		return
	}
	m.reserve.WithLabelValues(token).Set(bigFloat(reserve))
	m.usedReserve.WithLabelValues(token).Set(bigFloat(used))
	m.totalShares.WithLabelValues(token).Set(bigFloat(shares))
}

func bigFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
