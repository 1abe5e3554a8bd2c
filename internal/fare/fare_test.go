package fare

import (
	"testing"

	"github.com/example/ride-hail/internal/models"
)

var (
	broadway = models.Location{Lat: 40.7128, Lng: -74.0060}
	empire   = models.Location{Lat: 40.7484, Lng: -73.9857}
)

func TestEstimateDeterministic(t *testing.T) {
	e := NewEstimator(10)
	a := e.Estimate(broadway, empire)
	b := e.Estimate(broadway, empire)
	if a != b {
		t.Fatalf("same trip must quote the same: %+v vs %+v", a, b)
	}
	if a.Fare < MinimumFare {
		t.Fatalf("fare below minimum: %f", a.Fare)
	}
	if a.Distance <= 0 || a.Duration <= 0 {
		t.Fatalf("expected positive distance/duration, got %+v", a)
	}
}

func TestEstimateMinimumFare(t *testing.T) {
	e := NewEstimator(10)
	got := e.Estimate(broadway, broadway)
	if got.Fare != MinimumFare {
		t.Fatalf("zero-length trip should hit the minimum, got %f", got.Fare)
	}
	if got.Distance != 0 || got.Duration != 0 {
		t.Fatalf("zero-length trip, got %+v", got)
	}
}

func TestEstimateScalesWithDistance(t *testing.T) {
	e := NewEstimator(10)
	short := e.Estimate(broadway, empire)
	long := e.Estimate(broadway, models.Location{Lat: 40.7580, Lng: -73.9855})
	if long.Distance <= short.Distance {
		t.Fatalf("expected longer trip to cover more miles: %f vs %f", long.Distance, short.Distance)
	}
	if long.Fare <= short.Fare {
		t.Fatalf("expected longer trip to cost more: %f vs %f", long.Fare, short.Fare)
	}
}

func TestZeroSpeedFallsBack(t *testing.T) {
	e := NewEstimator(0)
	if e.SpeedMps <= 0 {
		t.Fatalf("expected default speed, got %f", e.SpeedMps)
	}
}
