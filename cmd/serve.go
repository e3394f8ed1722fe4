package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
	"github.com/chaos-io/rembg/rembg"
	"github.com/chaos-io/rembg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动背景移除 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址，覆盖配置中的 server.addr")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server.SetMode(a.cfg.Log.Development)

	model, models, err := a.loadModel("")
	if err != nil {
		return err
	}
	defer func() {
		if err := models.Close(); err != nil {
			logger.Log().Warn("close models", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := rembg.NewService(model, rembg.NewMetrics(reg))
	srv := server.New(svc, server.Options{
		Addr:            a.cfg.Server.Addr,
		CORSAllowOrigin: a.cfg.Server.CORSAllowOrigin,
		MaxUploadBytes:  a.cfg.Server.MaxUploadBytes,
		MaxConcurrent:   a.cfg.Server.MaxConcurrent,
		AcquireTimeout:  a.cfg.Server.AcquireTimeout,
	}, reg)

	if schedule := a.cfg.Stats.Cron; schedule != "" {
		stats, err := server.NewStatsReporter(schedule, svc.Metrics(), srv.Limiter())
		if err != nil {
			return err
		}
		stats.Start()
		defer stats.Stop()
	}

	logger.Log().Info("rembg server starting",
		zap.String("model", model.ModelName()),
		zap.String("addr", a.cfg.Server.Addr),
	)
	return srv.Run(ctx)
}
