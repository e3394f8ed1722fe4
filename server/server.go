package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/logger"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	Addr            string
	CORSAllowOrigin string
	MaxUploadBytes  int64
	MaxConcurrent   int
	AcquireTimeout  time.Duration
}

// Server 背景移除 HTTP 服务
type Server struct {
	opts       Options
	router     *gin.Engine
	limiter    *Limiter
	httpServer *http.Server
}

// SetMode 非开发模式下 gin 使用 release 模式并关闭自带输出，需在 New 之前调用
func SetMode(development bool) {
	if development {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
}

// New 创建服务。reg 用于注册 HTTP 指标并在 /metrics 暴露，为 nil 时不暴露。
func New(svc Service, opts Options, reg *prometheus.Registry) *Server {
	limiter := NewLimiter(opts.MaxConcurrent, opts.AcquireTimeout)
	h := &handler{svc: svc, limiter: limiter, maxUpload: opts.MaxUploadBytes}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(), CORS(opts.CORSAllowOrigin))
	if reg != nil {
		router.Use(newHTTPMetrics(reg).Middleware())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}

	router.GET("/api/ping", h.ping)
	g := router.Group("/rembg")
	{
		g.POST("/image", h.image)
		g.POST("/mask", h.mask)
	}

	return &Server{
		opts:    opts,
		router:  router,
		limiter: limiter,
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Limiter() *Limiter { return s.limiter }

// Run 启动监听，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Log().Info("http server listening", zap.String("addr", s.opts.Addr))
		// 正常关闭时返回 http.ErrServerClosed
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Log().Info("http server stopped")
	return nil
}
