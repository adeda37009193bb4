// Package router assembles the gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kennethnrk/fasttext-services/internal/api/http/handler"
	"github.com/kennethnrk/fasttext-services/internal/api/http/middleware"
	"github.com/kennethnrk/fasttext-services/internal/metrics"
)

// Deps are the collaborators of the HTTP API. Cache, HostInfo and Metrics
// are optional.
type Deps struct {
	Host     handler.Host
	Cache    handler.Pinger
	HostInfo handler.HostInfoFunc
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Setup creates and configures the Gin router
func Setup(d Deps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	healthHandler := handler.NewHealthHandler(d.Host, d.Cache, d.HostInfo)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	} else {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	serviceHandler := handler.NewServiceHandler(d.Host)

	v1 := router.Group("/api/v1")
	{
		services := v1.Group("/services")
		{
			services.GET("", serviceHandler.List)
			services.POST("/:name/process", serviceHandler.Process)
		}
	}

	return router
}
