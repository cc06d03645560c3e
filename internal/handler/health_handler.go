// Package handler contains HTTP request handlers.
// In Gin, a handler is any function with signature func(*gin.Context).
// No need for controller classes, just functions grouped by file.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness. The process is alive as long as it can
// answer; an open PokeAPI breaker only downgrades the status to "degraded"
// since stored snapshots and cached data are still served.
type HealthHandler struct {
	breaker BreakerReporter
	started time.Time
}

// NewHealthHandler creates a new HealthHandler. breaker may be nil.
func NewHealthHandler(breaker BreakerReporter) *HealthHandler {
	return &HealthHandler{breaker: breaker, started: time.Now()}
}

// Healthz responds with service status.
// Route: GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	status, upstream := "ok", "unknown"
	if h.breaker != nil {
		upstream = h.breaker.BreakerState()
		if upstream == "open" {
			status = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"service":        "pokemmo-companion",
		"upstream":       upstream,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
