// Package server exposes the ingestion pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenlabs/lumen/internal/config"
	eventdomain "github.com/lumenlabs/lumen/internal/event/domain"
	"github.com/lumenlabs/lumen/internal/observability/logger"
	"github.com/lumenlabs/lumen/internal/observability/metrics"
	"github.com/lumenlabs/lumen/internal/observability/tracing"
	"github.com/lumenlabs/lumen/internal/quota"
	"github.com/lumenlabs/lumen/internal/tier"
	usagedomain "github.com/lumenlabs/lumen/internal/usage/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewEngine builds the gin engine with the ambient middleware stack.
func NewEngine(cfg config.Config, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(tracing.GinMiddleware(cfg.ServiceName))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

type ServerParam struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Engine   *gin.Engine
	EventSvc eventdomain.Service
	UsageSvc usagedomain.Service
	Quota    quota.Enforcer
	Tiers    tier.Service
}

// Server holds the handler dependencies.
type Server struct {
	cfg    config.Config
	log    *zap.Logger
	db     *gorm.DB
	engine *gin.Engine

	eventSvc eventdomain.Service
	usageSvc usagedomain.Service
	quotaSvc quota.Enforcer
	tierSvc  tier.Service

	limiter *rateLimiter
}

func NewServer(p ServerParam) *Server {
	return &Server{
		cfg:      p.Cfg,
		log:      p.Log.Named("server"),
		db:       p.DB,
		engine:   p.Engine,
		eventSvc: p.EventSvc,
		usageSvc: p.UsageSvc,
		quotaSvc: p.Quota,
		tierSvc:  p.Tiers,
		limiter:  newRateLimiter(p.Cfg.RateLimit.Limit, p.Cfg.RateLimit.Window),
	}
}

// RegisterAPIRoutes attaches every endpoint to the engine.
func (s *Server) RegisterAPIRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.Use(s.APIKeyRequired(), s.RateLimited())
	{
		api.POST("/events", s.IngestEvent)
		api.GET("/traces/:trace_id", s.GetTrace)
		api.GET("/usage", s.GetUsage)
		api.GET("/quota", s.GetQuota)
	}

	internal := s.engine.Group("/internal")
	{
		internal.POST("/usage/backfill", s.RunBackfill)
	}
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.log.Info("http server starting", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.log.Info("http server shutting down")
			return srv.Shutdown(ctx)
		},
	})
}

// Module assembles the HTTP layer.
var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterAPIRoutes() }),
	fx.Invoke(RunHTTP),
)
