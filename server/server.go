// Package server 把打分服务暴露为 HTTP 接口（gin）。
package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/scoring"
)

// Scorer 在线打分接口，*scoring.Service 实现了它
type Scorer interface {
	Score(ctx context.Context, rec core.Record) (*scoring.Result, error)
	Ready() bool
}

// Options HTTP 服务配置
type Options struct {
	Logger zerolog.Logger
	// RateLimitRPS 每个客户端 IP 的 /predict 限流，<=0 不限流
	RateLimitRPS float64
	RateBurst    int
	// Gatherer /metrics 的数据来源，nil 时使用 prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
	// Release 为 true 时 gin 进入 release 模式
	Release bool
}

// PredictResponse POST /predict 的响应
type PredictResponse struct {
	Probability float64 `json:"probability"`
	Prediction  int     `json:"prediction"`
}

// Server HTTP 服务
type Server struct {
	scorer Scorer
	opts   Options
	logger zerolog.Logger
	router *gin.Engine
	// limiter 未开启限流时为 nil
	limiter *Limiter
}

func New(scorer Scorer, opts Options) *Server {
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		scorer: scorer,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "server").Logger(),
		router: gin.New(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler 返回 http.Handler，便于 httptest 或外部 http.Server 使用
func (s *Server) Handler() http.Handler { return s.router }

// Run 监听 addr，ctx 结束后优雅退出
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Close 释放后台资源（限流器清理协程），Run 退出时自动调用
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "an unexpected error occurred",
		})
	}))
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/readyz", s.readinessHandler)

	metrics := promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})
	s.router.GET("/metrics", gin.WrapH(metrics))

	predict := []gin.HandlerFunc{s.predictHandler}
	if s.opts.RateLimitRPS > 0 {
		s.limiter = NewLimiter(s.opts.RateLimitRPS, s.opts.RateBurst)
		predict = append([]gin.HandlerFunc{s.limiter.Middleware()}, predict...)
	}
	s.router.POST("/predict", predict...)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = s.logger.Error()
		case status >= 400:
			ev = s.logger.Warn()
		default:
			ev = s.logger.Debug()
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.scorer.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) predictHandler(c *gin.Context) {
	var req map[string]any
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	res, err := s.scorer.Score(c.Request.Context(), core.Record(req))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": errorCode(err), "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, PredictResponse{
		Probability: math.Round(res.Probability*1e4) / 1e4,
		Prediction:  res.Prediction,
	})
}

func statusOf(err error) int {
	switch {
	case core.IsSchemaMismatch(err), errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case core.IsUninitialized(err), core.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	if de := core.GetDomainError(err); de != nil {
		return de.Code
	}
	return "internal_error"
}
