package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/dockerlab-backend/internal/sse"
)

// SSEHandler attaches a browser to the dashboard notification stream.
type SSEHandler struct {
	hub *sse.Hub
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

func (sh *SSEHandler) Stream(c *gin.Context) {
	client := sh.hub.NewClient()
	sh.hub.AddChannel(client, sse.ChannelDashboard)
	defer sh.hub.CloseClient(client)

	sh.hub.ServeHTTP(c.Writer, c.Request, client)
}
