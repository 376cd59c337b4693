// README: WebSocket upgrade endpoint.
package handlers

import (
	"github.com/gin-gonic/gin"

	"radar/internal/http/middleware"
	"radar/internal/ws"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) Connect(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	role := c.GetString(middleware.CtxRole)
	if err := h.hub.Serve(c.Writer, c.Request, userID, role); err != nil {
		// the upgrader already wrote the error response
		return
	}
}
