package fare

import (
	"math"

	"github.com/example/ride-hail/internal/geo"
	"github.com/example/ride-hail/internal/models"
)

// Standard city fare schedule. Rates are per mile and per minute.
const (
	BaseFare      = 2.50
	PerMileRate   = 1.75
	PerMinuteRate = 0.25
	MinimumFare   = 7.00

	metersPerMile = 1609.344
)

// Estimator produces deterministic fare quotes from straight-line distance
// and a default city speed. No routing engine: the same pickup/dropoff
// pair always quotes the same price.
type Estimator struct {
	SpeedMps float64
}

func NewEstimator(speedMps float64) *Estimator {
	if speedMps <= 0 {
		speedMps = 8.0 // ~28.8 km/h default city speed
	}
	return &Estimator{SpeedMps: speedMps}
}

// Estimate returns fare (dollars), distance (miles) and duration (seconds)
// for a trip.
func (e *Estimator) Estimate(pickup, dropoff models.Location) models.FareEstimate {
	meters := geo.Haversine(pickup.Lat, pickup.Lng, dropoff.Lat, dropoff.Lng)
	miles := meters / metersPerMile
	seconds := meters / e.SpeedMps

	fare := BaseFare + miles*PerMileRate + seconds/60*PerMinuteRate
	if fare < MinimumFare {
		fare = MinimumFare
	}
	return models.FareEstimate{
		Fare:     round2(fare),
		Distance: round2(miles),
		Duration: math.Round(seconds),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
