// README: Hospital registry and patient admission handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"radar/internal/modules/hospital"
	"radar/internal/types"
)

type HospitalHandler struct {
	hospitals *hospital.Service
}

func NewHospitalHandler(svc *hospital.Service) *HospitalHandler {
	return &HospitalHandler{hospitals: svc}
}

type createHospitalReq struct {
	Name       string      `json:"name"`
	Location   types.Point `json:"location"`
	TotalUnits int         `json:"totalUnits"`
}

func (h *HospitalHandler) Create(c *gin.Context) {
	var req createHospitalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.hospitals.Create(c.Request.Context(), hospital.CreateCommand{
		Name:       req.Name,
		Location:   req.Location,
		TotalUnits: req.TotalUnits,
	})
	if err != nil {
		writeHospitalError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"hospitalId": id})
}

func (h *HospitalHandler) Get(c *gin.Context) {
	got, err := h.hospitals.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeHospitalError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, got)
}

func (h *HospitalHandler) List(c *gin.Context) {
	list, err := h.hospitals.List(c.Request.Context())
	if err != nil {
		writeHospitalError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"hospitals": list})
}

type admitReq struct {
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Condition string `json:"condition"`
	Status    string `json:"status"`
}

// Admit adds a patient to a hospital. A hospital with every unit occupied
// answers 409; the patient must be taken elsewhere.
func (h *HospitalHandler) Admit(c *gin.Context) {
	var req admitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.hospitals.Admit(c.Request.Context(), hospital.AdmitCommand{
		HospitalID: types.ID(c.Param("id")),
		Name:       req.Name,
		Unit:       req.Unit,
		Condition:  req.Condition,
		Status:     req.Status,
	})
	if err != nil {
		writeHospitalError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

func (h *HospitalHandler) Checkout(c *gin.Context) {
	err := h.hospitals.Checkout(c.Request.Context(), types.ID(c.Param("id")), c.Param("patientId"))
	if err != nil {
		writeHospitalError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}
