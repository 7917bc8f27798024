// Package metrics はPrometheusのカウンタをまとめる。
// nilのMetricsに対して呼んでも何もしない。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	ordersCreated  prometheus.Counter
	settlements    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New はregに登録する。テストでは prometheus.NewRegistry() を渡す
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_gateway_calls_total",
			Help: "Payment gateway calls by operation and result.",
		}, []string{"op", "result"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_gateway_call_duration_seconds",
			Help:    "Payment gateway call latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"op"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders written by checkout.",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_settlement_events_total",
			Help: "Settlement callbacks by source and outcome.",
		}, []string{"source", "outcome"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.httpRequests, m.httpLatency,
		m.gatewayCalls, m.gatewayLatency,
		m.ordersCreated, m.settlements,
	)
	return m
}

func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) ObserveGateway(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(op, result).Inc()
	m.gatewayLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) Settlement(source, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(source, outcome).Inc()
}

// /metrics 用
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
