// Package metrics exposes the earn service's Prometheus instrumentation.
// The reward flow counters double as the input for the adaptive daily cap.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verify outcome labels.
const (
	ResultOK        = "ok"
	ResultRejected  = "rejected"
	ResultSuccess   = "success"
	ResultInvalid   = "invalid"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

type Metrics struct {
	Registry *prometheus.Registry

	PrepareTotal      *prometheus.CounterVec
	VerifyTotal       *prometheus.CounterVec
	RewardCoinsTotal  prometheus.Counter
	FailureRatio      prometheus.Gauge
	EffectiveDailyCap prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		PrepareTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostdeck_earn_prepare_total",
			Help: "Reward sessions prepared, by result.",
		}, []string{"result"}),
		VerifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostdeck_earn_verify_total",
			Help: "Reward verification outcomes.",
		}, []string{"result"}),
		RewardCoinsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hostdeck_earn_reward_coins_total",
			Help: "Coins credited through reward ads.",
		}),
		FailureRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostdeck_earn_failure_ratio",
			Help: "Rolling reward verification failure ratio.",
		}),
		EffectiveDailyCap: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostdeck_earn_effective_daily_cap",
			Help: "Adaptive per-user daily view cap.",
		}),
	}

	reg.MustRegister(
		m.PrepareTotal,
		m.VerifyTotal,
		m.RewardCoinsTotal,
		m.FailureRatio,
		m.EffectiveDailyCap,
	)
	return m
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
