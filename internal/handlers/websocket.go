package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/renthive/renthive-backend/internal/services"
)

// WebSocketHandler upgrades an authenticated request onto the hub.
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		userType := c.GetString("userType")

		services.HandleWebSocket(hub, c.Writer, c.Request, userID, userType)
	}
}
