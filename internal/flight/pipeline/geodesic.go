package pipeline

import (
	"math"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

// EarthRadiusMeters is the spherical radius used for all distances.
const EarthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters between two points
// given in degrees. Inputs are not range checked; NaN propagates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180

	phi1 := lat1 * rad
	phi2 := lat2 * rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lon2 - lon1) * rad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// PathDistance sums the distance between consecutive points. Fewer than two
// points give 0.
func PathDistance(lats, lons []float64) float64 {
	n := min(len(lats), len(lons))

	var total float64
	for i := 1; i < n; i++ {
		total += Haversine(lats[i-1], lons[i-1], lats[i], lons[i])
	}
	return total
}

// TotalDistance walks the table in row order along the given coordinate
// columns.
func TotalDistance(table *entity.FlightTable, latCol, lonCol string) float64 {
	return PathDistance(table.Floats(latCol), table.Floats(lonCol))
}
