// README: Live-location ingestion handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"radar/internal/http/middleware"
	"radar/internal/modules/location"
	"radar/internal/types"
)

type LocationHandler struct {
	location *location.Service
}

func NewLocationHandler(svc *location.Service) *LocationHandler {
	return &LocationHandler{location: svc}
}

type locationUpdateReq struct {
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
	AssignedCallID types.ID  `json:"assignedCallId"`
}

// UpdateDriver ingests a driver position sample. Drivers may only publish
// their own; admins may publish for anyone.
func (h *LocationHandler) UpdateDriver(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if !mayWriteFor(c, string(id)) {
		writeError(c, http.StatusForbidden, "cannot publish for another driver")
		return
	}
	h.update(c, location.RoleDriver, id)
}

func (h *LocationHandler) UpdateHospital(c *gin.Context) {
	h.update(c, location.RoleHospital, types.ID(c.Param("id")))
}

func (h *LocationHandler) update(c *gin.Context, role location.Role, id types.ID) {
	var req locationUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	err := h.location.Publish(c.Request.Context(), role, id, location.Sample{
		Position:       types.Point{Lat: req.Lat, Lng: req.Lng},
		Timestamp:      req.Timestamp,
		Status:         req.Status,
		AssignedCallID: req.AssignedCallID,
	})
	if err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

// Offline removes a driver from the live index, typically on sign-out.
func (h *LocationHandler) Offline(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if !mayWriteFor(c, string(id)) {
		writeError(c, http.StatusForbidden, "cannot publish for another driver")
		return
	}
	if err := h.location.Offline(c.Request.Context(), location.RoleDriver, id); err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (h *LocationHandler) Latest(c *gin.Context) {
	sample, ok, err := h.location.Latest(c.Request.Context(), location.RoleDriver, types.ID(c.Param("id")))
	if err != nil {
		writeLocationError(c, err)
		return
	}
	if !ok {
		writeError(c, http.StatusNotFound, "no location published")
		return
	}
	writeJSON(c, http.StatusOK, sample)
}

func mayWriteFor(c *gin.Context, id string) bool {
	role := c.GetString(middleware.CtxRole)
	return role == middleware.RoleAdmin || c.GetString(middleware.CtxUserID) == id
}
