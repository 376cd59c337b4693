// README: Dispatch decision endpoint for operators and automation.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"radar/internal/modules/dispatch"
)

type DispatchHandler struct {
	engine *dispatch.Engine
}

func NewDispatchHandler(engine *dispatch.Engine) *DispatchHandler {
	return &DispatchHandler{engine: engine}
}

// Decide runs a dispatch decision for an existing call. Re-running it on an
// already dispatched call returns the bound driver unchanged.
func (h *DispatchHandler) Decide(c *gin.Context) {
	var req dispatch.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CallID == "" {
		writeError(c, http.StatusBadRequest, "callId required")
		return
	}
	resp, err := h.engine.Decide(c.Request.Context(), req)
	if err != nil {
		writeCallError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, resp)
}
