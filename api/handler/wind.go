package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/coastwatch/aggregator"
)

// Wind returns a handler for GET /api/wind and /api/livewind.
// The reading is scraped live on every request.
func Wind(ag *aggregator.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := ag.Wind(c.Request.Context())
		if err != nil {
			respondError(c, err, "Failed to fetch wind data")
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, snap)
	}
}
