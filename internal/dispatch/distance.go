// Package dispatch holds the pure assignment rules: great-circle distance,
// proximity priority and engineer ranking. Nothing here performs I/O.
package dispatch

import (
	"math"

	"github.com/fieldops/dispatch-service/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Distance returns the haversine distance in kilometers between two points.
// NaN inputs yield NaN.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceBetween is Distance over two locations. It returns NaN unless both are valid.
func DistanceBetween(a, b *domain.Location) float64 {
	if !a.Valid() || !b.Valid() {
		return math.NaN()
	}
	return Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
