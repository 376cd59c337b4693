// Package geo contains pure geographic computation helpers shared by the
// matching, call and location modules.
package geo

import (
	"math"
	"time"

	"radar/internal/types"
)

const earthRadiusKm = 6371.0

// ambulanceSpeedKmh is the fixed average speed assumed for ETA estimates.
// Straight-line distance over a flat speed is the only geometry this system
// uses; there is no road routing.
const ambulanceSpeedKmh = 60.0

// DistanceKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func DistanceKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// EstimateETA converts a straight-line distance into an arrival estimate at
// the fixed average speed, rounded up to whole minutes. Zero distance yields
// zero; any positive distance yields at least one minute.
func EstimateETA(distanceKm float64) time.Duration {
	if distanceKm <= 0 {
		return 0
	}
	minutes := math.Ceil(distanceKm / ambulanceSpeedKmh * 60)
	return time.Duration(minutes) * time.Minute
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// SortByDistance performs an insertion sort (fine for small N) on any slice
// where each element exposes a distance via the accessor function.
func SortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
