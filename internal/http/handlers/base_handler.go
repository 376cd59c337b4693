// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"radar/internal/modules/call"
	"radar/internal/modules/fleet"
	"radar/internal/modules/hospital"
	"radar/internal/modules/location"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, call.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, call.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, call.ErrInvalidTransition),
		errors.Is(err, call.ErrConflict),
		errors.Is(err, call.ErrDriverUnavailable):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeHospitalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, hospital.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, hospital.ErrNotFound), errors.Is(err, hospital.ErrPatientNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, hospital.ErrAtCapacity):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeFleetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fleet.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, fleet.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeLocationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, location.ErrInvalidPosition), errors.Is(err, location.ErrMissingTimestamp):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
