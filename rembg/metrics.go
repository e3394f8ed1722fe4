package rembg

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 推理指标：prometheus 给外部抓取，原子计数给定时任务打日志
type Metrics struct {
	inferenceCounter  *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec

	total    atomic.Int64
	failed   atomic.Int64
	inFlight atomic.Int64
}

// Stats 累计计数快照
type Stats struct {
	Total    int64
	Failed   int64
	InFlight int64
}

// NewMetrics 在 reg 上注册指标，reg 为 nil 时只做进程内统计
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		inferenceCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rembg",
				Name:      "inference_total",
				Help:      "Total number of background removal inferences",
			},
			[]string{"model", "op", "status"},
		),
		inferenceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rembg",
				Name:      "inference_duration_seconds",
				Help:      "Background removal inference duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"model", "op"},
		),
	}
}

// begin 标记一次推理开始，返回结束时调用的记录函数
func (m *Metrics) begin(model, op string) func(err error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	m.inFlight.Add(1)
	return func(err error) {
		m.inFlight.Add(-1)
		m.total.Add(1)
		status := "ok"
		if err != nil {
			status = "error"
			m.failed.Add(1)
		}
		m.inferenceCounter.WithLabelValues(model, op, status).Inc()
		m.inferenceDuration.WithLabelValues(model, op).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Total:    m.total.Load(),
		Failed:   m.failed.Load(),
		InFlight: m.inFlight.Load(),
	}
}
