package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *handlerImpl) HandleHealthCheck(c *gin.Context) {
	err := h.pgPool.Ping(c)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "ERROR",
			"service":   "todo-service",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   "todo-service",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
