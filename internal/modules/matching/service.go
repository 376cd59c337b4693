// README: Matching service builds eligible candidate pools and picks the nearest.
package matching

import (
	"context"

	"radar/internal/config"
	"radar/internal/geo"
	"radar/internal/modules/fleet"
	"radar/internal/modules/hospital"
	"radar/internal/modules/location"
	"radar/internal/types"
)

// DriverLocator supplies fresh live-location samples for drivers around a
// point, sorted by distance. Stale samples are already excluded.
type DriverLocator interface {
	NearbyDrivers(ctx context.Context, origin types.Point, radiusKm float64) ([]location.DriverSample, error)
}

// HospitalLister supplies the full hospital roster.
type HospitalLister interface {
	List(ctx context.Context) ([]*hospital.Hospital, error)
}

type Service struct {
	locator   DriverLocator
	hospitals HospitalLister
	cfg       config.MatchingConfig
}

func NewService(locator DriverLocator, hospitals HospitalLister, cfg config.MatchingConfig) *Service {
	return &Service{locator: locator, hospitals: hospitals, cfg: cfg}
}

// NearestDriver picks the closest driver whose live sample reports the
// available status. The boolean is false when no eligible driver exists;
// callers fall back to their retry or queuing policy.
func (s *Service) NearestDriver(ctx context.Context, origin types.Point) (DriverMatch, bool, error) {
	samples, err := s.locator.NearbyDrivers(ctx, origin, s.cfg.RadiusKm)
	if err != nil {
		return DriverMatch{}, false, err
	}

	candidates := make([]Candidate, 0, len(samples))
	for _, sm := range samples {
		if sm.Status != string(fleet.DriverAvailable) {
			continue
		}
		candidates = append(candidates, Candidate{ID: sm.DriverID, Position: sm.Position})
	}

	res, ok := Nearest(origin, candidates)
	if !ok {
		return DriverMatch{}, false, nil
	}
	return DriverMatch{
		DriverID:   res.ID,
		Position:   res.Position,
		DistanceKm: res.DistanceKm,
		ETA:        geo.EstimateETA(res.DistanceKm),
	}, true, nil
}

// NearestHospital picks the closest hospital with spare capacity. When every
// hospital is full the closest one is still returned with Fallback set:
// patient transport is never blocked on exact capacity bookkeeping. The
// boolean is false only when no hospital has a usable location at all.
func (s *Service) NearestHospital(ctx context.Context, origin types.Point) (HospitalMatch, bool, error) {
	all, err := s.hospitals.List(ctx)
	if err != nil {
		return HospitalMatch{}, false, err
	}

	eligible := make([]Candidate, 0, len(all))
	every := make([]Candidate, 0, len(all))
	for _, h := range all {
		c := Candidate{ID: h.ID, Position: h.Location}
		every = append(every, c)
		if h.OccupiedUnits < h.TotalUnits {
			eligible = append(eligible, c)
		}
	}

	fallback := false
	res, ok := Nearest(origin, eligible)
	if !ok {
		res, ok = Nearest(origin, every)
		if !ok {
			return HospitalMatch{}, false, nil
		}
		fallback = true
	}

	name := ""
	for _, h := range all {
		if h.ID == res.ID {
			name = h.Name
			break
		}
	}
	return HospitalMatch{
		HospitalID: res.ID,
		Name:       name,
		Position:   res.Position,
		DistanceKm: res.DistanceKm,
		ETA:        geo.EstimateETA(res.DistanceKm),
		Fallback:   fallback,
	}, true, nil
}
