package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/coastwatch/aggregator"
	"github.com/use-agent/coastwatch/models"
)

// respondCached writes an upstream document with cache metadata. max-age
// advertises the full cache TTL on hits and misses alike.
func respondCached(c *gin.Context, res *aggregator.Result, ttl time.Duration) {
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())))
	if res.CacheStatus == aggregator.CacheHit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", res.Body)
}

// respondError maps a ProxyError to the correct HTTP status code and writes
// the JSON error envelope. summary describes the failed operation for
// local failures.
func respondError(c *gin.Context, err error, summary string) {
	var proxyErr *models.ProxyError
	if !errors.As(err, &proxyErr) {
		proxyErr = models.NewProxyError(models.ErrCodeInternal, err.Error(), err)
	}

	status := mapErrorToStatus(proxyErr)
	slog.Error(summary,
		"path", c.Request.URL.Path,
		"status", status,
		"code", proxyErr.Code,
		"error", err,
	)

	if proxyErr.Code == models.ErrCodeUpstreamNonOK {
		c.JSON(status, models.UpstreamErrorResponse{
			Error:  "Upstream returned an error",
			Status: proxyErr.UpstreamStatus,
			Body:   string(proxyErr.UpstreamBody),
			Code:   proxyErr.Code,
		})
		return
	}

	body := models.ErrorResponse{Error: summary, Details: err.Error(), Code: proxyErr.Code}
	switch proxyErr.Code {
	case models.ErrCodeBrowserLaunch:
		body.Error = "Browser failed to launch"
	case models.ErrCodeUpstreamTimeout:
		body.Error = "Upstream request timed out"
	}

	c.JSON(status, body)
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ProxyError) int {
	switch e.Code {
	case models.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeUpstreamNonOK:
		return http.StatusBadGateway // 502
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}
