package geo

import (
	"math"
	"sync"
	"time"

	"github.com/example/ride-hail/internal/models"
)

// LocationCache records each driver's last reported position so riders
// (and the consumer pipeline) can read it back outside a live connection.
type LocationCache interface {
	Upsert(loc models.DriverLocation)
	Last(driverID string) (models.DriverLocation, bool)
}

type MemoryLocations struct {
	mu   sync.RWMutex
	last map[string]models.DriverLocation
}

func NewMemoryLocations() *MemoryLocations {
	return &MemoryLocations{last: make(map[string]models.DriverLocation)}
}

func (m *MemoryLocations) Upsert(loc models.DriverLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc.Updated = time.Now()
	m.last[loc.DriverID] = loc
}

func (m *MemoryLocations) Last(driverID string) (models.DriverLocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.last[driverID]
	return loc, ok
}

// Haversine distance in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
