package pipeline

import (
	"math"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

// AssumedSampleRateHz is the logging rate assumed when turning a row count into
// a duration. Logs carry timestamps, but they are not used: the duration is an
// estimate and is wrong for logs recorded at another rate.
const AssumedSampleRateHz = 10.0

// Summarize derives the flight summary from a resolved table and the already
// accumulated path distance.
func Summarize(table *entity.FlightTable, roles entity.ColumnRoles, totalDistance float64) entity.FlightSummary {
	return entity.FlightSummary{
		MaxAltitude:           maxNumeric(table.Floats(roles.Altitude)),
		MaxSpeed:              maxNumeric(table.Floats(roles.Speed)),
		FlightDurationSeconds: float64(table.Len()) / AssumedSampleRateHz,
		TotalDistanceMeters:   totalDistance,
	}
}

// Measure runs the geodesic accumulator and the summary calculator.
func Measure(table *entity.FlightTable, roles entity.ColumnRoles) entity.FlightSummary {
	return Summarize(table, roles, TotalDistance(table, roles.Latitude, roles.Longitude))
}

func maxNumeric(values []float64) float64 {
	out := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v > out {
			out = v
		}
	}
	return out
}
