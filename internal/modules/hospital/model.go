// README: Hospital aggregate with unit capacity and admitted patients.
package hospital

import (
	"time"

	"radar/internal/types"
)

type Patient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit"`
	Condition  string    `json:"condition"`
	Status     string    `json:"status"`
	AdmittedAt time.Time `json:"admittedAt"`
}

// Hospital keeps occupiedUnits consistent with the patient list: admissions
// and checkouts mutate both in one statement, and 0 <= occupied <= total
// always holds.
type Hospital struct {
	ID            types.ID
	Name          string
	Location      types.Point
	TotalUnits    int
	OccupiedUnits int
	Patients      []Patient
	CreatedAt     time.Time
}

// HasCapacity reports whether the hospital can take another admission.
func (h *Hospital) HasCapacity() bool {
	return h.OccupiedUnits < h.TotalUnits
}
