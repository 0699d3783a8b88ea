package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ballpit/backend/internal/ws"
)

// HandleArenaWebSocket handles real-time arena communication
func HandleArenaWebSocket() gin.HandlerFunc {
	return ws.HandleWebSocket
}
