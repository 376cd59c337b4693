// README: Live-location sample model for the per-entity broadcast channel.
package location

import (
	"time"

	"radar/internal/types"
)

type Role string

const (
	RoleDriver   Role = "driver"
	RoleHospital Role = "hospital"
)

// Sample is one published position. Only the most recent sample per entity is
// retained; there is no history. Timestamp is mandatory so consumers can
// detect staleness and drop old entries from matching.
type Sample struct {
	Position       types.Point `json:"position"`
	Timestamp      time.Time   `json:"timestamp"`
	Status         string      `json:"status"`
	AssignedCallID types.ID    `json:"assignedCallId,omitempty"`
}

// DriverSample is a driver's latest sample annotated with the distance from a
// queried origin.
type DriverSample struct {
	DriverID       types.ID
	Position       types.Point
	Status         string
	AssignedCallID types.ID
	Timestamp      time.Time
	DistanceKm     float64
}

// Event is the bus payload emitted on every accepted publish.
type Event struct {
	Role   Role
	ID     types.ID
	Sample Sample
}
