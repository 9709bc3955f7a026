// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"sheetbridge/internal/core/security"
	"sheetbridge/internal/domain/validation"
	"sheetbridge/internal/infrastructure/http/v1/handlers"
	"sheetbridge/internal/infrastructure/http/v1/middleware"
	"sheetbridge/internal/infrastructure/metrics"
	"sheetbridge/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Engine validates and enriches request workbooks
	Engine *validation.Engine

	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator enables bearer auth on /api/v1 when set
	TokenValidator middleware.TokenValidator

	// Version reported by /health/info
	Version string

	// Debug switches gin to debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	// Cell values must keep their exact numeric text.
	binding.EnableDecoderUseNumber = true

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Engine, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/info", healthHandler.Info)
	}
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authEnabled := cfg.TokenValidator != nil
	api := router.Group("/api/v1")
	if authEnabled {
		api.Use(middleware.Auth(cfg.TokenValidator))
	}

	codec := handlers.NewCodecHandler(handlers.NewBaseHandler(), cfg.Engine)
	api.POST("/pack", middleware.RequireScope(authEnabled, security.ScopePack), codec.Pack)
	api.POST("/unpack", middleware.RequireScope(authEnabled, security.ScopeUnpack), codec.Unpack)
	api.POST("/validate", middleware.RequireScope(authEnabled, security.ScopeValidate), codec.Validate)
	api.POST("/enrich", middleware.RequireScope(authEnabled, security.ScopeEnrich), codec.Enrich)

	return router
}
