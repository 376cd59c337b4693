// README: Wire contract for dispatch decisions (engine responses and webhook payloads).
package dispatch

import "radar/internal/types"

// Event types carried on decision requests and webhook payloads.
const (
	EventNewEmergencyCall      = "new_emergency_call"
	EventForwardDispatch       = "forward_dispatch"
	EventDriverPickedUpPatient = "driver_picked_up_patient"
)

// DecisionRequest asks the engine to resolve a driver for a call.
type DecisionRequest struct {
	CallID      types.ID    `json:"callId"`
	Location    types.Point `json:"location"`
	Description string      `json:"description"`
	EventType   string      `json:"eventType"`
}

// DriverInfo is the assigned-driver block returned to callers and dashboards.
type DriverInfo struct {
	DriverName   string       `json:"driverName"`
	VehiclePlate string       `json:"vehiclePlate"`
	VehicleType  string       `json:"vehicleType"`
	Location     *types.Point `json:"location,omitempty"`
	Phone        string       `json:"phone"`
}

// DecisionResponse reports the outcome of a decision. Success false with a
// message means no driver could be bound yet; the call stays queued.
type DecisionResponse struct {
	Success bool        `json:"success"`
	Driver  *DriverInfo `json:"driver,omitempty"`
	Message string      `json:"message"`
}
