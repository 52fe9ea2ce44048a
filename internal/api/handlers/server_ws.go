package handlers

import (
	"github.com/gin-gonic/gin"
)

// Websocket handles GET /ws. Auth runs before the upgrade; the gateway owns
// the connection after the handshake.
func (s *Server) Websocket(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	s.gateway.Handle(c.Writer, c.Request, userID)
}
