// Package metrics はナビゲーションガードと認証付きリクエストの Prometheus メトリクスを提供します。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はアプリケーション専用のレジストリとカウンターを保持します。
type Metrics struct {
	guardDecisions *prometheus.CounterVec
	clientRequests *prometheus.CounterVec

	registry *prometheus.Registry
}

// New はメトリクスを作成し、専用レジストリに登録します。
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		guardDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_decisions_total",
				Help: "Navigation guard decisions by target route and outcome",
			},
			[]string{"route", "outcome"},
		),
		clientRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "client_requests_total",
				Help: "Authenticated backend requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.guardDecisions,
		m.clientRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordDecision はガードの判定を 1 件記録します。
func (m *Metrics) RecordDecision(route, outcome string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(route, outcome).Inc()
}

// RecordRequest はバックエンド呼び出しの結果を 1 件記録します。
func (m *Metrics) RecordRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.clientRequests.WithLabelValues(method, outcome).Inc()
}

// Registry は内部レジストリを返します。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics 用のハンドラーを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
