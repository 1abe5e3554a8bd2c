package geo

import (
	"testing"

	"github.com/example/ride-hail/internal/models"
)

func TestHaversineZero(t *testing.T) {
	if d := Haversine(0, 0, 0, 0); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// lower Manhattan to the Empire State Building, roughly 4.1km
	d := Haversine(40.7128, -74.0060, 40.7484, -73.9857)
	if d < 3500 || d > 4800 {
		t.Fatalf("implausible distance %f", d)
	}
}

func TestMemoryLocations(t *testing.T) {
	c := NewMemoryLocations()
	if _, ok := c.Last("d1"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Upsert(models.DriverLocation{DriverID: "d1", RiderID: "u1", Lat: 1, Lng: 2})
	loc, ok := c.Last("d1")
	if !ok || loc.Lat != 1 || loc.Lng != 2 || loc.RiderID != "u1" {
		t.Fatalf("unexpected location %+v", loc)
	}
	if loc.Updated.IsZero() {
		t.Fatal("Updated not stamped")
	}

	c.Upsert(models.DriverLocation{DriverID: "d1", RiderID: "u1", Lat: 3, Lng: 4})
	if loc, _ := c.Last("d1"); loc.Lat != 3 {
		t.Fatalf("expected newest position, got %+v", loc)
	}
}
