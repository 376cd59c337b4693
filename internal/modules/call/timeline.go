// README: Timeline derivation from lifecycle timestamps and the audit log.
package call

import (
	"time"

	"radar/internal/types"
)

// TimelineEntry is one milestone on the call timeline.
type TimelineEntry struct {
	Label string    `json:"label"`
	At    time.Time `json:"at"`
}

// Timeline is the ordered milestone list plus phase durations, for incident
// review. Durations are nil until both bounding timestamps exist.
type Timeline struct {
	CallID  types.ID        `json:"callId"`
	Status  Status          `json:"status"`
	Entries []TimelineEntry `json:"entries"`
	Events  []Event         `json:"events"`

	DispatchDuration  *time.Duration `json:"dispatchDurationNs,omitempty"`
	ResponseDuration  *time.Duration `json:"responseDurationNs,omitempty"`
	TransportDuration *time.Duration `json:"transportDurationNs,omitempty"`
	TotalDuration     *time.Duration `json:"totalDurationNs,omitempty"`
}

// BuildTimeline assembles milestones in chronological order. Timestamps left
// nil by skipped or not-yet-reached phases are simply omitted.
func BuildTimeline(c *Call, events []Event) *Timeline {
	t := &Timeline{CallID: c.ID, Status: c.Status, Events: events}

	t.add("Call received", &c.CallCreatedAt)
	t.add("Ambulance dispatched", c.DispatchedAt)
	t.add("Driver en route", c.DriverEnRouteAt)
	t.add("Driver arrived at caller", c.DriverArrivedAtCallerAt)
	t.add("En route to hospital", c.EnRouteToHospitalAt)
	t.add("Call forwarded", c.CallForwardedAt)
	t.add("Arrived at hospital", c.ArrivedAtHospitalAt)
	t.add("Call completed", c.CompletedAt)

	t.DispatchDuration = between(&c.CallCreatedAt, c.DispatchedAt)
	t.ResponseDuration = between(&c.CallCreatedAt, c.DriverArrivedAtCallerAt)
	t.TransportDuration = between(c.EnRouteToHospitalAt, c.ArrivedAtHospitalAt)
	t.TotalDuration = between(&c.CallCreatedAt, c.CompletedAt)
	return t
}

func (t *Timeline) add(label string, at *time.Time) {
	if at == nil || at.IsZero() {
		return
	}
	t.Entries = append(t.Entries, TimelineEntry{Label: label, At: *at})
}

func between(from, to *time.Time) *time.Duration {
	if from == nil || to == nil || from.IsZero() || to.IsZero() {
		return nil
	}
	d := to.Sub(*from)
	return &d
}
