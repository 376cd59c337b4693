// README: Location store backed by Redis GEO plus a per-entity hash.
package location

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"radar/internal/types"
)

const (
	geoKeyPrefix    = "locations:geo:%ss"
	sampleKeyPrefix = "locations:%ss:%s"
	// sampleTTL bounds how long a silent entity stays queryable; staleness
	// filtering happens well before this expires.
	sampleTTL = 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// SetSample writes the GEO member and the sample hash in one pipeline so a
// nearby query never sees a position without its metadata.
func (s *Store) SetSample(ctx context.Context, role Role, id types.ID, sm Sample) error {
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, geoKey(role), &redis.GeoLocation{
		Name:      string(id),
		Longitude: sm.Position.Lng,
		Latitude:  sm.Position.Lat,
	})
	key := sampleKey(role, id)
	pipe.HSet(ctx, key, map[string]interface{}{
		"lat":              strconv.FormatFloat(sm.Position.Lat, 'f', -1, 64),
		"lng":              strconv.FormatFloat(sm.Position.Lng, 'f', -1, 64),
		"timestamp":        sm.Timestamp.UTC().Format(time.RFC3339Nano),
		"status":           sm.Status,
		"assigned_call_id": string(sm.AssignedCallID),
	})
	pipe.Expire(ctx, key, sampleTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetSample returns the latest sample for an entity, and whether one exists.
func (s *Store) GetSample(ctx context.Context, role Role, id types.ID) (Sample, bool, error) {
	vals, err := s.redis.HGetAll(ctx, sampleKey(role, id)).Result()
	if err != nil {
		return Sample{}, false, err
	}
	if len(vals) == 0 {
		return Sample{}, false, nil
	}
	sm, err := parseSample(vals)
	if err != nil {
		return Sample{}, false, err
	}
	return sm, true, nil
}

// NearbyIDs returns entity ids within radiusKm of origin, closest first.
func (s *Store) NearbyIDs(ctx context.Context, role Role, origin types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, geoKey(role), &redis.GeoSearchQuery{
		Longitude:  origin.Lng,
		Latitude:   origin.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

// Remove drops an entity from the channel, e.g. when a driver goes offline.
func (s *Store) Remove(ctx context.Context, role Role, id types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.ZRem(ctx, geoKey(role), string(id))
	pipe.Del(ctx, sampleKey(role, id))
	_, err := pipe.Exec(ctx)
	return err
}

func parseSample(vals map[string]string) (Sample, error) {
	lat, err := strconv.ParseFloat(vals["lat"], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("parsing lat %q: %w", vals["lat"], err)
	}
	lng, err := strconv.ParseFloat(vals["lng"], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("parsing lng %q: %w", vals["lng"], err)
	}
	ts, err := time.Parse(time.RFC3339Nano, vals["timestamp"])
	if err != nil {
		return Sample{}, fmt.Errorf("parsing timestamp %q: %w", vals["timestamp"], err)
	}
	return Sample{
		Position:       types.Point{Lat: lat, Lng: lng},
		Timestamp:      ts,
		Status:         vals["status"],
		AssignedCallID: types.ID(vals["assigned_call_id"]),
	}, nil
}

func geoKey(role Role) string {
	return fmt.Sprintf(geoKeyPrefix, role)
}

func sampleKey(role Role, id types.ID) string {
	return fmt.Sprintf(sampleKeyPrefix, role, string(id))
}
