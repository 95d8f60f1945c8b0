// Package v1 provides the HTTP API.
package v1

import (
	"github.com/gin-gonic/gin"

	"repocatalog/internal/domain/catalog"
	"repocatalog/internal/infrastructure/http/v1/handlers"
	"repocatalog/internal/infrastructure/http/v1/middleware"
	"repocatalog/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Service implements list, create and delete
	Service *catalog.Service

	// Logger for request logging
	Logger *logger.Logger

	// AllowedOrigins for CORS; empty disables the CORS middleware
	AllowedOrigins []string

	// Development enables gin debug mode
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(cfg.AllowedOrigins))
	}
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	// Recovery sits inside ErrorHandler so a recovered panic is still rendered.
	router.Use(middleware.Recovery())

	base := handlers.NewBaseHandler()

	healthHandler := handlers.NewHealthHandler(cfg.Service)
	router.GET("/", healthHandler.Root)
	router.GET("/api/test", healthHandler.Test)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	registerRepositoryRoutes(router, handlers.NewRepositoryHandler(base, cfg.Service))

	return router
}

func registerRepositoryRoutes(router *gin.Engine, h *handlers.RepositoryHandler) {
	repos := router.Group("/repositories")
	{
		repos.GET("/", h.List)
		repos.POST("/", h.Create)
		repos.DELETE("/:id/", h.Delete)
	}
}
