// README: Matching candidates and results for nearest-resource selection.
package matching

import (
	"time"

	"radar/internal/types"
)

// Candidate is any dispatchable resource with a known position. Eligibility
// (driver availability, hospital spare capacity) is applied by the caller
// when building the candidate slice; candidates with malformed positions are
// skipped by Nearest itself.
type Candidate struct {
	ID       types.ID
	Position types.Point
}

type Result struct {
	ID         types.ID
	Position   types.Point
	DistanceKm float64
}

// DriverMatch is a matched driver with its live sample data.
type DriverMatch struct {
	DriverID   types.ID
	Position   types.Point
	DistanceKm float64
	ETA        time.Duration
}

// HospitalMatch is a matched hospital destination. Fallback is set when every
// hospital was at capacity and the nearest one was chosen regardless.
type HospitalMatch struct {
	HospitalID types.ID
	Name       string
	Position   types.Point
	DistanceKm float64
	ETA        time.Duration
	Fallback   bool
}
