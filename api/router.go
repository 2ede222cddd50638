package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/use-agent/coastwatch/aggregator"
	"github.com/use-agent/coastwatch/api/handler"
	"github.com/use-agent/coastwatch/api/middleware"
	"github.com/use-agent/coastwatch/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → RequestID → CORS (any origin)
//	API:     RateLimit (if enabled)
//
// Health endpoint is outside the rate limiter so monitoring probes always work.
func NewRouter(ag *aggregator.Aggregator, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(cors.New(corsConfig()))

	api := r.Group("/api")

	api.GET("/health", handler.Health(ag, startTime))

	limited := api.Group("")
	if cfg.RateLimit.Enabled {
		limited.Use(middleware.RateLimit(cfg.RateLimit))
	}

	// Live, never cached.
	limited.GET("/wind", handler.Wind(ag))
	limited.GET("/livewind", handler.Wind(ag))

	// Cache-first.
	limited.GET("/tides", handler.Tides(ag))
	limited.GET("/weatherforecast", handler.Forecast(ag))
	limited.GET("/waves", handler.Waves(ag))

	return r
}

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	c.AllowHeaders = append(c.AllowHeaders, middleware.RequestIDHeader)
	c.ExposeHeaders = []string{"X-Cache", middleware.RequestIDHeader}
	return c
}
