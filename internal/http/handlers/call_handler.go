// README: Emergency call handlers: submission, board listing, lifecycle actions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"radar/internal/http/middleware"
	"radar/internal/modules/call"
	"radar/internal/modules/dispatch"
	"radar/internal/types"
)

type CallHandler struct {
	calls  *call.Service
	engine *dispatch.Engine
}

func NewCallHandler(calls *call.Service, engine *dispatch.Engine) *CallHandler {
	return &CallHandler{calls: calls, engine: engine}
}

type createCallReq struct {
	CallerPhone string      `json:"callerPhone"`
	Location    types.Point `json:"location"`
	Description string      `json:"description"`
	Gender      string      `json:"gender"`
	RoomNumber  string      `json:"roomNumber"`
	Priority    string      `json:"priority"`
}

// Create accepts a caller submission and immediately runs a dispatch
// decision. The caller gets the assigned-driver block when a driver was
// bound, or a searching message otherwise.
func (h *CallHandler) Create(c *gin.Context) {
	var req createCallReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	created, err := h.calls.Create(c.Request.Context(), call.CreateCommand{
		CallerPhone: req.CallerPhone,
		Location:    req.Location,
		Description: req.Description,
		Gender:      req.Gender,
		RoomNumber:  req.RoomNumber,
		Priority:    req.Priority,
	})
	if err != nil {
		writeCallError(c, err)
		return
	}

	decision, err := h.engine.Decide(c.Request.Context(), dispatch.DecisionRequest{
		CallID:      created.ID,
		Location:    created.Location,
		Description: created.Description,
		EventType:   dispatch.EventNewEmergencyCall,
	})
	if err != nil {
		// the call exists and the sweep will retry; report it as queued
		decision = dispatch.DecisionResponse{Success: false, Message: "Searching for an available ambulance. Please stay on the line."}
	}

	writeJSON(c, http.StatusCreated, gin.H{
		"callId":  created.ID,
		"success": decision.Success,
		"driver":  decision.Driver,
		"message": decision.Message,
	})
}

func (h *CallHandler) Get(c *gin.Context) {
	got, err := h.calls.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeCallError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, got)
}

// List returns the call board scoped to the caller's role: drivers see only
// their own assignments, hospital staff only calls routed to their facility,
// admins the full board.
func (h *CallHandler) List(c *gin.Context) {
	f := call.Filter{}
	switch c.GetString(middleware.CtxRole) {
	case middleware.RoleDriver:
		id := types.ID(c.GetString(middleware.CtxUserID))
		f.DriverID = &id
	case middleware.RoleHospital:
		id := types.ID(c.GetString(middleware.CtxUserID))
		f.HospitalID = &id
	}
	if status := c.Query("status"); status != "" {
		f.Statuses = []call.Status{call.Status(status)}
	}
	list, err := h.calls.List(c.Request.Context(), f)
	if err != nil {
		writeCallError(c, err)
		return
	}
	if list == nil {
		list = []*call.Call{}
	}
	writeJSON(c, http.StatusOK, gin.H{"calls": list})
}

func (h *CallHandler) Timeline(c *gin.Context) {
	tl, err := h.calls.Timeline(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeCallError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, tl)
}

type pickupReq struct {
	DriverLocation *types.Point `json:"driverLocation"`
}

func (h *CallHandler) Pickup(c *gin.Context) {
	var req pickupReq
	_ = c.ShouldBindJSON(&req)

	cmd := call.PickupCommand{
		CallID:   types.ID(c.Param("id")),
		DriverID: types.ID(c.GetString(middleware.CtxUserID)),
	}
	if req.DriverLocation != nil {
		cmd.DriverLocation = *req.DriverLocation
	}
	updated, err := h.calls.Pickup(c.Request.Context(), cmd)
	if err != nil {
		writeCallError(c, err)
		return
	}
	h.engine.NotifyPickup(c.Request.Context(), updated)
	writeJSON(c, http.StatusOK, updated)
}

type forwardReq struct {
	Reason string `json:"reason"`
}

func (h *CallHandler) Forward(c *gin.Context) {
	var req forwardReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	updated, err := h.calls.Forward(c.Request.Context(), call.ForwardCommand{
		CallID:      types.ID(c.Param("id")),
		Reason:      req.Reason,
		ForwardedBy: c.GetString(middleware.CtxUserID),
		DriverID:    actingDriverID(c),
	})
	if err != nil {
		writeCallError(c, err)
		return
	}

	// re-match right away; if nothing is free the sweep keeps retrying
	decision, err := h.engine.Decide(c.Request.Context(), dispatch.DecisionRequest{
		CallID:      updated.ID,
		Location:    updated.Location,
		Description: updated.Description,
		EventType:   dispatch.EventForwardDispatch,
	})
	if err != nil {
		decision = dispatch.DecisionResponse{Success: false, Message: "Searching for an available ambulance. Please stay on the line."}
	}

	writeJSON(c, http.StatusOK, gin.H{
		"call":    updated,
		"success": decision.Success,
		"driver":  decision.Driver,
		"message": decision.Message,
	})
}

// actingDriverID returns the caller's ID when they act as a driver, empty for
// admins so ownership checks are bypassed.
func actingDriverID(c *gin.Context) types.ID {
	if c.GetString(middleware.CtxRole) == middleware.RoleDriver {
		return types.ID(c.GetString(middleware.CtxUserID))
	}
	return ""
}

func (h *CallHandler) Complete(c *gin.Context) {
	updated, err := h.calls.Complete(c.Request.Context(), call.CompleteCommand{
		CallID:   types.ID(c.Param("id")),
		DriverID: actingDriverID(c),
	})
	if err != nil {
		writeCallError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, updated)
}
