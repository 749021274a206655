// Package server exposes the credits engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	accountdomain "github.com/verdantlabs/verdant/internal/account/domain"
	balancedomain "github.com/verdantlabs/verdant/internal/balance/domain"
	"github.com/verdantlabs/verdant/internal/config"
	ledgerdomain "github.com/verdantlabs/verdant/internal/ledger/domain"
	"github.com/verdantlabs/verdant/internal/observability"
	obsmiddleware "github.com/verdantlabs/verdant/internal/observability/logger"
	obsmetrics "github.com/verdantlabs/verdant/internal/observability/metrics"
	obstracing "github.com/verdantlabs/verdant/internal/observability/tracing"
	"github.com/verdantlabs/verdant/internal/ratelimit"
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	genID       *snowflake.Node
	accountSvc  accountdomain.Service
	balanceSvc  balancedomain.Service
	ledgerSvc   ledgerdomain.Service
	edgeLimiter *ratelimit.EdgeLimiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	AccountSvc  accountdomain.Service
	BalanceSvc  balancedomain.Service
	LedgerSvc   ledgerdomain.Service
	EdgeLimiter *ratelimit.EdgeLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		accountSvc:  p.AccountSvc,
		balanceSvc:  p.BalanceSvc,
		ledgerSvc:   p.LedgerSvc,
		edgeLimiter: p.EdgeLimiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerAccountRoutes()
	svc.registerBalanceRoutes()
	svc.registerLedgerRoutes()

	return svc
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(RunHTTP),
)
