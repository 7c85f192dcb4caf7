package entity

import (
	"fmt"
	"math"
)

// FlightSummary is computed once from a table and never mutated. MaxAltitude
// and MaxSpeed are NaN when their column holds no numeric value.
type FlightSummary struct {
	MaxAltitude           float64
	MaxSpeed              float64
	FlightDurationSeconds float64
	TotalDistanceMeters   float64
}

// FormattedSummary is the display form of a FlightSummary.
type FormattedSummary struct {
	FlightDuration string
	MaxAltitude    string
	MaxSpeed       string
	TotalDistance  string
}

func (s FlightSummary) Format() FormattedSummary {
	return FormattedSummary{
		FlightDuration: formatMetric(s.FlightDurationSeconds, "s"),
		MaxAltitude:    formatMetric(s.MaxAltitude, "m"),
		MaxSpeed:       formatMetric(s.MaxSpeed, "m/s"),
		TotalDistance:  formatMetric(s.TotalDistanceMeters/1000, "km"),
	}
}

func formatMetric(v float64, unit string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}
