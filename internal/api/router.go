package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"triage/internal/logger"
	"triage/pkg/health"
	"triage/pkg/middleware"
	"triage/pkg/ratelimit"
)

type RouterOptions struct {
	ServiceName string
	Tracing     bool
	RateLimiter *ratelimit.Limiter
	Health      *health.Registry
}

func NewRouter(h *Handler, log logger.Logger, opts RouterOptions) *gin.Engine {
	router := gin.New()

	if opts.Tracing {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RecoveryMiddleware(log))

	if opts.Health != nil {
		router.GET("/health", opts.Health.Handler())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("")
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.Middleware())
	}
	h.RegisterRoutes(api)

	return router
}
