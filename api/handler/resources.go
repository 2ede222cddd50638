package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/coastwatch/aggregator"
)

// Tides returns a handler for GET /api/tides?station=ID.
func Tides(ag *aggregator.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := ag.Tides(c.Request.Context(), c.Query("station"))
		if err != nil {
			respondError(c, err, "Failed to fetch tidal data")
			return
		}
		respondCached(c, res, ag.TTL())
	}
}

// Forecast returns a handler for GET /api/weatherforecast.
func Forecast(ag *aggregator.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := ag.Forecast(c.Request.Context())
		if err != nil {
			respondError(c, err, "Failed to fetch weather forecast")
			return
		}
		respondCached(c, res, ag.TTL())
	}
}

// Waves returns a handler for GET /api/waves.
func Waves(ag *aggregator.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := ag.Waves(c.Request.Context())
		if err != nil {
			respondError(c, err, "Failed to fetch wave data")
			return
		}
		respondCached(c, res, ag.TTL())
	}
}
