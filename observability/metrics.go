package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type gatewayMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	gatewayMetricsOnce sync.Once
	gatewayRegistry    *gatewayMetrics

	exchangeMetricsOnce sync.Once
	exchangeRegistry    *ExchangeMetrics
)

// Gateway returns the lazily-initialised registry recording HTTP gateway
// activity.
func Gateway() *gatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &gatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "synthex",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by route and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "synthex",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total gateway errors segmented by route and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "synthex",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "synthex",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by throttling policies.",
			}, []string{"route", "reason"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.errors,
			gatewayRegistry.latency,
			gatewayRegistry.throttles,
		)
	})
	return gatewayRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *gatewayMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards and alerts remain consistent.
func (m *gatewayMetrics) RecordThrottle(route, reason string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(route, reason).Inc()
}

// ExchangeMetrics tracks engine operations and protocol solvency.
type ExchangeMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	totalDebt  prometheus.Gauge
	debtShares prometheus.Gauge
	interest   prometheus.Gauge
	swapTax    prometheus.Gauge
	slot       prometheus.Gauge
}

// Exchange returns the lazily-initialised exchange metrics registry.
func Exchange() *ExchangeMetrics {
	exchangeMetricsOnce.Do(func() {
		exchangeRegistry = &ExchangeMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "synthex",
				Subsystem: "exchange",
				Name:      "operations_total",
				Help:      "Exchange operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "synthex",
				Subsystem: "exchange",
				Name:      "failures_total",
				Help:      "Rejected exchange operations segmented by error code.",
			}, []string{"operation", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "synthex",
				Subsystem: "exchange",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for exchange operations including the store commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			totalDebt: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "synthex",
				Subsystem: "exchange",
				Name:      "total_debt_usd",
				Help:      "Protocol debt in USD as of the last committed operation.",
			}),
			debtShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "synthex",
				Subsystem: "exchange",
				Name:      "debt_shares",
				Help:      "Outstanding global debt shares.",
			}),
			interest: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "synthex",
				Subsystem: "exchange",
				Name:      "accumulated_debt_interest_usd",
				Help:      "Debt interest accrued and not yet withdrawn.",
			}),
			swapTax: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "synthex",
				Subsystem: "exchange",
				Name:      "swap_tax_reserve_usd",
				Help:      "Swap tax held in reserve.",
			}),
			slot: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "synthex",
				Subsystem: "exchange",
				Name:      "clock_slot",
				Help:      "Slot of the engine clock.",
			}),
		}
		prometheus.MustRegister(
			exchangeRegistry.operations,
			exchangeRegistry.failures,
			exchangeRegistry.latency,
			exchangeRegistry.totalDebt,
			exchangeRegistry.debtShares,
			exchangeRegistry.interest,
			exchangeRegistry.swapTax,
			exchangeRegistry.slot,
		)
	})
	return exchangeRegistry
}

// ObserveOperation records one engine call. An empty code means success.
func (m *ExchangeMetrics) ObserveOperation(operation, code string, duration time.Duration) {
	if m == nil {
		return
	}
	operation = normalizeLabel(operation)
	outcome := "success"
	if code != "" {
		outcome = "error"
		m.failures.WithLabelValues(operation, code).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// SolvencySnapshot carries the gauges refreshed after each commit. USD
// values are already converted to floating point dollars.
type SolvencySnapshot struct {
	TotalDebtUSD      float64
	DebtShares        uint64
	AccruedInterest   float64
	SwapTaxReserveUSD float64
	Slot              uint64
	// DebtUnknown leaves the debt gauge untouched, e.g. while prices are
	// stale.
	DebtUnknown bool
}

// SetSolvency updates the solvency gauges.
func (m *ExchangeMetrics) SetSolvency(s SolvencySnapshot) {
	if m == nil {
		return
	}
	if !s.DebtUnknown {
		m.totalDebt.Set(s.TotalDebtUSD)
	}
	m.debtShares.Set(float64(s.DebtShares))
	m.interest.Set(s.AccruedInterest)
	m.swapTax.Set(s.SwapTaxReserveUSD)
	m.slot.Set(float64(s.Slot))
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
