package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dockerlab-backend/internal/inspector"
)

// LabHealth reports the reachability of the lab's moving parts. The lab
// stays useful with a dead broker or runtime, so the endpoint always
// answers 200 and lets the body tell the story.
func LabHealth(insp inspector.Inspector, mqttConnected func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		dockerOK := false
		if insp != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			dockerOK = insp.Ping(ctx) == nil
			cancel()
		}
		mqttOK := mqttConnected != nil && mqttConnected()

		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"docker":    dockerOK,
			"mqtt":      mqttOK,
			"timestamp": time.Now().UTC(),
		})
	}
}

// MonitorHealth degrades instead of failing: ingest errors flip the
// status but the dashboard keeps serving whatever is already stored.
func MonitorHealth(degraded func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if degraded != nil && degraded() {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
		})
	}
}
