package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/example/ride-hail/internal/models"
)

// ErrNotFound is returned when the referenced ride or user id is absent.
var ErrNotFound = errors.New("not found")

// RideStore is the single source of truth for ride state. Update runs the
// mutate callback atomically against the stored record: of two concurrent
// updates to the same ride, the second observes the first's result. The
// callback may reject the update by returning an error, in which case the
// record is left untouched.
type RideStore interface {
	Create(r *models.Ride) error
	Get(id string) (*models.Ride, error)
	Update(id string, mutate func(*models.Ride) error) (*models.Ride, error)
	ListByStatus(status models.Status) ([]*models.Ride, error)
	ListByUser(userID string) ([]*models.Ride, error)
}

// MemoryStore keeps rides in a process-wide table guarded by one mutex.
// The lock held across Update's read-modify-write is the serialization
// mechanism the state machine relies on.
type MemoryStore struct {
	mu    sync.RWMutex
	rides map[string]*models.Ride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]*models.Ride)}
}

func (m *MemoryStore) Create(r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) Update(id string, mutate func(*models.Ride) error) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := *r
	if err := mutate(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now()
	m.rides[id] = &next
	cp := next
	return &cp, nil
}

func (m *MemoryStore) ListByStatus(status models.Status) ([]*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Ride
	for _, r := range m.rides {
		if r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByUser(userID string) ([]*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Ride
	for _, r := range m.rides {
		if r.RiderID == userID || r.DriverID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}
