package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/justscrape/browser"
	"github.com/use-agent/justscrape/models"
	"github.com/use-agent/justscrape/search"
)

// Health returns a handler for GET /api/v1/health. Reports pool and cache
// state; always 200 so probes can read the body.
func Health(pool *browser.Pool, client *search.Client, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "healthy",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Pool:    pool.Stats(),
			Cache:   client.CacheStats(),
			Version: "0.1.0",
		})
	}
}
