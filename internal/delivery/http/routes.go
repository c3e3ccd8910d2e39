package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitelens/backend/config"
)

// MetricsExporter records request metrics and serves the scrape endpoint
type MetricsExporter interface {
	HTTPMetrics
	Handler() http.Handler
}

// SetupRouter creates and configures the Gin router.
// logger and m may be nil.
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger, m MetricsExporter) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger.Named("http")))
	if m != nil {
		router.Use(MetricsMiddleware(m))
	}
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	v1.Use(TimeoutMiddleware(cfg.Server.RequestTimeout))
	{
		v1.GET("/categories", handler.ListCategories)

		insights := v1.Group("/insights")
		{
			insights.POST("/target-customer", handler.TargetCustomer)
			insights.POST("/optimal-location", handler.OptimalLocation)
		}
	}

	return router
}
