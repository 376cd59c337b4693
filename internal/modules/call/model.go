// README: Emergency call aggregate, status enum and transition table.
package call

import (
	"time"

	"radar/internal/types"
)

type Status string

const (
	StatusNone         Status = "none"
	StatusPending      Status = "pending"
	StatusDispatched   Status = "dispatched"
	StatusTransporting Status = "transporting"
	StatusForwarded    Status = "forwarded"
	StatusCompleted    Status = "completed"
)

// Active reports whether the status is one of the in-flight values. A call
// holds at most one active status at a time; completed is terminal.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusDispatched, StatusTransporting, StatusForwarded:
		return true
	}
	return false
}

// AllowedTransitions represents the dispatch lifecycle as code. A forward is
// only reachable before hospital handoff, and re-enters dispatched once a new
// driver is matched. Nothing leaves completed.
var AllowedTransitions = map[Status][]Status{
	StatusPending:      {StatusDispatched, StatusForwarded},
	StatusDispatched:   {StatusTransporting, StatusForwarded},
	StatusTransporting: {StatusCompleted},
	StatusForwarded:    {StatusDispatched},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Call is one emergency request from submission to completion. The status
// field and the timestamp for the transition that produced it are always
// written together; readers never observe one without the other.
type Call struct {
	ID            types.ID    `json:"id"`
	CallerPhone   string      `json:"callerPhone"`
	Location      types.Point `json:"location"`
	Description   string      `json:"description"`
	Gender        string      `json:"gender,omitempty"`
	RoomNumber    string      `json:"roomNumber,omitempty"`
	Priority      string      `json:"priority,omitempty"`
	Status        Status      `json:"status"`
	StatusVersion int         `json:"-"`

	AssignedDriverID   *types.ID `json:"assignedDriverId,omitempty"`
	AssignedDriver     string    `json:"assignedDriver,omitempty"`
	AssignedVehicle    string    `json:"assignedVehicle,omitempty"`
	AssignedHospitalID *types.ID `json:"assignedHospitalId,omitempty"`
	AssignedHospital   string    `json:"assignedHospital,omitempty"`

	ForwardReason string `json:"forwardReason,omitempty"`
	ForwardedBy   string `json:"forwardedBy,omitempty"`

	CallCreatedAt           time.Time  `json:"callCreatedAt"`
	DispatchedAt            *time.Time `json:"dispatchedAt,omitempty"`
	DriverEnRouteAt         *time.Time `json:"driverEnRouteAt,omitempty"`
	DriverArrivedAtCallerAt *time.Time `json:"driverArrivedAtCallerAt,omitempty"`
	EnRouteToHospitalAt     *time.Time `json:"enRouteToHospitalAt,omitempty"`
	CallForwardedAt         *time.Time `json:"callForwardedAt,omitempty"`
	ArrivedAtHospitalAt     *time.Time `json:"arrivedAtHospitalAt,omitempty"`
	CompletedAt             *time.Time `json:"completedAt,omitempty"`
}

// Event is one row of the per-call audit log.
type Event struct {
	ID         int64     `json:"id"`
	CallID     types.ID  `json:"callId"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	ActorType  string    `json:"actorType,omitempty"`
	ActorID    *types.ID `json:"actorId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
