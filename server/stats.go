package server

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
	"github.com/chaos-io/rembg/rembg"
)

// StatsReporter 定时把推理计数写进日志
type StatsReporter struct {
	cron    *cron.Cron
	metrics *rembg.Metrics
	limiter *Limiter
}

// NewStatsReporter schedule 为 cron 表达式，例如 "@every 1m"
func NewStatsReporter(schedule string, metrics *rembg.Metrics, limiter *Limiter) (*StatsReporter, error) {
	r := &StatsReporter{
		cron:    cron.New(),
		metrics: metrics,
		limiter: limiter,
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *StatsReporter) Start() { r.cron.Start() }

// Stop 停止调度，返回的 ctx 在正在执行的任务结束后关闭
func (r *StatsReporter) Stop() context.Context { return r.cron.Stop() }

func (r *StatsReporter) Report() {
	stats := r.metrics.Stats()
	fields := []zap.Field{
		zap.Int64("total", stats.Total),
		zap.Int64("failed", stats.Failed),
		zap.Int64("inFlight", stats.InFlight),
	}
	if r.limiter != nil {
		fields = append(fields, zap.Int("slotsInUse", r.limiter.InUse()), zap.Int("slots", r.limiter.Capacity()))
	}
	logger.Log().Info("inference stats", fields...)
}
