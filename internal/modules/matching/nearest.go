// README: Pure nearest-candidate selection over great-circle distance.
package matching

import (
	"radar/internal/geo"
	"radar/internal/types"
)

// Nearest returns the candidate minimizing great-circle distance from origin.
// Ties are broken by first-encountered order, so the result is deterministic
// for a fixed input ordering. Candidates with malformed positions are
// excluded rather than erroring. The second return is false when no candidate
// remains; callers treat that as "no resource available now", not a failure.
func Nearest(origin types.Point, candidates []Candidate) (Result, bool) {
	best := Result{}
	found := false
	for _, c := range candidates {
		if !c.Position.Valid() {
			continue
		}
		d := geo.DistanceKm(origin, c.Position)
		if !found || d < best.DistanceKm {
			best = Result{ID: c.ID, Position: c.Position, DistanceKm: d}
			found = true
		}
	}
	return best, found
}
