// README: Driver and ambulance aggregates; status mirrors the bound call.
package fleet

import (
	"time"

	"radar/internal/types"
)

// DriverStatus mirrors the status of the call a driver is bound to, or
// "available" when idle. The status and the call reference always change
// together: never available with a call reference, never dispatch-active
// without one.
type DriverStatus string

const (
	DriverAvailable    DriverStatus = "available"
	DriverPending      DriverStatus = "pending"
	DriverDispatched   DriverStatus = "dispatched"
	DriverTransporting DriverStatus = "transporting"
	DriverForwarded    DriverStatus = "forwarded"
)

// DispatchActive reports whether the status implies a bound call.
func (s DriverStatus) DispatchActive() bool {
	switch s {
	case DriverPending, DriverDispatched, DriverTransporting, DriverForwarded:
		return true
	}
	return false
}

type Driver struct {
	ID                  types.ID
	Name                string
	Phone               string
	AmbulanceID         *types.ID
	Status              DriverStatus
	CurrentLocation     *types.Point
	AssignedCallID      *types.ID
	DeviceToken         string
	LastStatusUpdatedAt time.Time
	CreatedAt           time.Time
}

type Ambulance struct {
	ID            types.ID
	Plate         string
	Type          string
	Capacity      int
	Provider      string
	Paramedics    []string
	Status        DriverStatus
	CurrentCallID *types.ID
	DriverID      *types.ID
	CreatedAt     time.Time
}
