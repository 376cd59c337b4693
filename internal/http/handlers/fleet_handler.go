// README: Fleet administration and driver self-service handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"radar/internal/modules/fleet"
	"radar/internal/types"
)

type FleetHandler struct {
	fleet *fleet.Service
}

func NewFleetHandler(svc *fleet.Service) *FleetHandler {
	return &FleetHandler{fleet: svc}
}

type createDriverReq struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	AmbulanceID string `json:"ambulanceId"`
	DeviceToken string `json:"deviceToken"`
}

func (h *FleetHandler) CreateDriver(c *gin.Context) {
	var req createDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := fleet.CreateDriverCommand{
		Name:        req.Name,
		Phone:       req.Phone,
		DeviceToken: req.DeviceToken,
	}
	if req.AmbulanceID != "" {
		id := types.ID(req.AmbulanceID)
		cmd.AmbulanceID = &id
	}
	id, err := h.fleet.CreateDriver(c.Request.Context(), cmd)
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"driverId": id})
}

func (h *FleetHandler) GetDriver(c *gin.Context) {
	d, err := h.fleet.GetDriver(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *FleetHandler) ListDrivers(c *gin.Context) {
	list, err := h.fleet.ListDrivers(c.Request.Context())
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": list})
}

type createAmbulanceReq struct {
	Plate      string   `json:"plate"`
	Type       string   `json:"type"`
	Capacity   int      `json:"capacity"`
	Provider   string   `json:"provider"`
	Paramedics []string `json:"paramedics"`
	DriverID   string   `json:"driverId"`
}

func (h *FleetHandler) CreateAmbulance(c *gin.Context) {
	var req createAmbulanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := fleet.CreateAmbulanceCommand{
		Plate:      req.Plate,
		Type:       req.Type,
		Capacity:   req.Capacity,
		Provider:   req.Provider,
		Paramedics: req.Paramedics,
	}
	if req.DriverID != "" {
		id := types.ID(req.DriverID)
		cmd.DriverID = &id
	}
	id, err := h.fleet.CreateAmbulance(c.Request.Context(), cmd)
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"ambulanceId": id})
}

func (h *FleetHandler) GetAmbulance(c *gin.Context) {
	a, err := h.fleet.GetAmbulance(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

// Reconcile lets a driver app self-heal after a crash or reconnect: a driver
// stuck in a dispatch-active status without a live call is returned to
// available.
func (h *FleetHandler) Reconcile(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if !mayWriteFor(c, string(id)) {
		writeError(c, http.StatusForbidden, "cannot reconcile another driver")
		return
	}
	released, err := h.fleet.Reconcile(c.Request.Context(), id)
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"released": released})
}
