// Package location mirrors accepted samples into Firebase RTDB so external
// map and dashboard consumers keep the channel layout they already listen to:
// locations/drivers/{id} and locations/hospitals/{id}.
package location

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/db"

	"radar/internal/types"
)

// Mirror pushes a sample to an out-of-process live channel. Implementations
// must be safe for concurrent use.
type Mirror interface {
	Publish(ctx context.Context, role Role, id types.ID, sm Sample) error
}

type rtdbEntry struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	Timestamp      string  `json:"timestamp"`
	Status         string  `json:"status"`
	AssignedCallID string  `json:"assignedCallId,omitempty"`
}

// RTDBMirror writes samples to Firebase RTDB.
type RTDBMirror struct {
	client *db.Client
}

func NewRTDBMirror(client *db.Client) *RTDBMirror {
	return &RTDBMirror{client: client}
}

func (m *RTDBMirror) Publish(ctx context.Context, role Role, id types.ID, sm Sample) error {
	ref := m.client.NewRef(fmt.Sprintf("locations/%ss/%s", role, string(id)))
	entry := rtdbEntry{
		Lat:            sm.Position.Lat,
		Lng:            sm.Position.Lng,
		Timestamp:      sm.Timestamp.UTC().Format(time.RFC3339),
		Status:         sm.Status,
		AssignedCallID: string(sm.AssignedCallID),
	}
	if err := ref.Set(ctx, entry); err != nil {
		return fmt.Errorf("rtdb set %s/%s: %w", role, id, err)
	}
	return nil
}
