// README: Location service validates, stores, mirrors and fans out samples.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"radar/internal/bus"
	"radar/internal/config"
	"radar/internal/geo"
	"radar/internal/types"
)

var (
	ErrInvalidPosition  = errors.New("invalid position")
	ErrMissingTimestamp = errors.New("sample timestamp required")
)

// SampleStore is the persistence contract for the latest-sample channel.
type SampleStore interface {
	SetSample(ctx context.Context, role Role, id types.ID, sm Sample) error
	GetSample(ctx context.Context, role Role, id types.ID) (Sample, bool, error)
	NearbyIDs(ctx context.Context, role Role, origin types.Point, radiusKm float64) ([]types.ID, error)
	Remove(ctx context.Context, role Role, id types.ID) error
}

type Service struct {
	store  SampleStore
	mirror Mirror
	events *bus.Bus[Event]
	cfg    config.MatchingConfig
	log    *logrus.Logger
}

// NewService wires the sample store with an optional RTDB mirror and snapshot
// bus; either may be nil.
func NewService(store SampleStore, mirror Mirror, events *bus.Bus[Event], cfg config.MatchingConfig, log *logrus.Logger) *Service {
	return &Service{store: store, mirror: mirror, events: events, cfg: cfg, log: log}
}

// Publish accepts one position sample for an entity. The store write is
// authoritative; the RTDB mirror is best effort and a mirror failure is
// logged, never returned — the live channel must not take down ingestion.
func (s *Service) Publish(ctx context.Context, role Role, id types.ID, sm Sample) error {
	if !sm.Position.Valid() {
		return ErrInvalidPosition
	}
	if sm.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if err := s.store.SetSample(ctx, role, id, sm); err != nil {
		return err
	}

	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, role, id, sm); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"role": role, "id": id}).
				Warn("live channel mirror failed")
		}
	}
	if s.events != nil {
		s.events.Publish("locations:"+string(role)+"s", Event{Role: role, ID: id, Sample: sm})
	}
	return nil
}

// Latest returns the most recent sample for an entity regardless of age.
func (s *Service) Latest(ctx context.Context, role Role, id types.ID) (Sample, bool, error) {
	return s.store.GetSample(ctx, role, id)
}

// NearbyDrivers returns fresh driver samples within radiusKm of origin,
// closest first. Samples older than the configured max age, or with positions
// that fail validation, are dropped rather than surfaced.
func (s *Service) NearbyDrivers(ctx context.Context, origin types.Point, radiusKm float64) ([]DriverSample, error) {
	ids, err := s.store.NearbyIDs(ctx, RoleDriver, origin, radiusKm)
	if err != nil {
		return nil, err
	}

	maxAge := time.Duration(s.cfg.MaxSampleAgeSeconds) * time.Second
	now := time.Now()

	var out []DriverSample
	for _, id := range ids {
		sm, ok, err := s.store.GetSample(ctx, RoleDriver, id)
		if err != nil || !ok {
			continue
		}
		if !sm.Position.Valid() {
			continue
		}
		if maxAge > 0 && now.Sub(sm.Timestamp) > maxAge {
			continue
		}
		out = append(out, DriverSample{
			DriverID:       id,
			Position:       sm.Position,
			Status:         sm.Status,
			AssignedCallID: sm.AssignedCallID,
			Timestamp:      sm.Timestamp,
			DistanceKm:     geo.DistanceKm(origin, sm.Position),
		})
	}

	geo.SortByDistance(out, func(d DriverSample) float64 { return d.DistanceKm })
	return out, nil
}

// Offline removes an entity from the channel.
func (s *Service) Offline(ctx context.Context, role Role, id types.ID) error {
	return s.store.Remove(ctx, role, id)
}
