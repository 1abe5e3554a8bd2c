package rides

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-hail/internal/fare"
	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/observability"
	"github.com/example/ride-hail/internal/rooms"
	"github.com/example/ride-hail/internal/storage"
)

// ErrInvalidTransition is returned when a lifecycle precondition fails.
// The ride record is never mutated and no event is emitted.
var ErrInvalidTransition = errors.New("invalid ride state transition")

// transitions is the lifecycle graph. Cancel is legal while no one is
// driving yet; complete is legal once a driver holds the ride.
var transitions = map[models.Status][]models.Status{
	models.StatusRequested:  {models.StatusAccepted, models.StatusCancelled},
	models.StatusAccepted:   {models.StatusInProgress, models.StatusCompleted, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted},
}

func canTransition(from, to models.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Broadcaster is the slice of the event router the service needs.
type Broadcaster interface {
	Broadcast(channel, event string, payload any, except ...string) int
}

// Journal records lifecycle events durably (Kafka in production). Optional.
type Journal interface {
	Publish(key string, v any) error
}

// Notifier wakes driver apps through an external push provider when no
// driver session received the real-time event. Optional.
type Notifier interface {
	Notify(event string, payload any) error
}

// Service owns all ride state changes. Every successful transition is one
// atomic store update followed by exactly one broadcast to the channel the
// event belongs to; a failed precondition produces neither.
type Service struct {
	Store   storage.RideStore
	Router  Broadcaster
	Fares   *fare.Estimator
	Journal Journal
	Push    Notifier
	Logger  *slog.Logger
}

// Request creates a ride in requested state and notifies every connected
// available driver. exceptConn suppresses echo to the requesting
// connection when the request arrived over the real-time channel.
func (s *Service) Request(riderID string, pickup, dropoff models.Location, exceptConn ...string) (*models.Ride, error) {
	est := s.Fares.Estimate(pickup, dropoff)
	now := time.Now()
	r := &models.Ride{
		ID:        uuid.NewString(),
		RiderID:   riderID,
		Pickup:    pickup,
		Dropoff:   dropoff,
		Status:    models.StatusRequested,
		Fare:      est.Fare,
		Distance:  est.Distance,
		Duration:  est.Duration,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Create(r); err != nil {
		return nil, err
	}
	observability.RidesRequested.Inc()
	s.journal(r)
	delivered := s.Router.Broadcast(rooms.Drivers, "new-ride", r, exceptConn...)
	if delivered == 0 && s.Push != nil {
		// no live driver session got the event; wake the driver app instead
		if err := s.Push.Notify("new-ride", r); err != nil {
			s.Logger.Warn("push notify failed", "ride_id", r.ID, "error", err)
		}
	}
	s.Logger.Info("ride requested", "ride_id", r.ID, "rider_id", riderID, "delivered", delivered)
	return r, nil
}

// Accept moves a requested ride to accepted and binds the driver. Exactly
// one of any set of concurrent Accept calls wins; the store's atomic
// update makes the losers observe the post-transition state.
func (s *Service) Accept(rideID, driverID string) (*models.Ride, error) {
	r, err := s.transition(rideID, models.StatusAccepted, func(r *models.Ride) {
		r.DriverID = driverID
	})
	if err != nil {
		return nil, err
	}
	s.Router.Broadcast(rooms.Private("rider", r.RiderID), "ride-accepted",
		models.RideAccepted{RideID: r.ID, DriverID: r.DriverID})
	s.Logger.Info("ride accepted", "ride_id", r.ID, "driver_id", driverID)
	return r, nil
}

// Start moves an accepted ride to in-progress.
func (s *Service) Start(rideID string) (*models.Ride, error) {
	r, err := s.transition(rideID, models.StatusInProgress, nil)
	if err != nil {
		return nil, err
	}
	s.Router.Broadcast(rooms.Private("rider", r.RiderID), "ride-started",
		models.RideEvent{RideID: r.ID})
	return r, nil
}

// Complete ends the ride.
func (s *Service) Complete(rideID string) (*models.Ride, error) {
	r, err := s.transition(rideID, models.StatusCompleted, nil)
	if err != nil {
		return nil, err
	}
	s.Router.Broadcast(rooms.Private("rider", r.RiderID), "ride-completed",
		models.RideEvent{RideID: r.ID})
	return r, nil
}

// Cancel aborts a ride that is not yet in progress. The driver is told
// only when one is already bound.
func (s *Service) Cancel(rideID string) (*models.Ride, error) {
	r, err := s.transition(rideID, models.StatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	if r.DriverID != "" {
		s.Router.Broadcast(rooms.Private("driver", r.DriverID), "ride-cancelled",
			models.RideEvent{RideID: r.ID})
	}
	return r, nil
}

// transition applies one state change atomically. The extra mutation runs
// only after the precondition check passed, inside the same store update.
func (s *Service) transition(rideID string, to models.Status, extra func(*models.Ride)) (*models.Ride, error) {
	r, err := s.Store.Update(rideID, func(r *models.Ride) error {
		if !canTransition(r.Status, to) {
			return ErrInvalidTransition
		}
		if to == models.StatusAccepted && r.DriverID != "" {
			return ErrInvalidTransition
		}
		if extra != nil {
			extra(r)
		}
		r.Status = to
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			observability.InvalidTransitions.Inc()
		}
		return nil, err
	}
	observability.RideTransitions.WithLabelValues(string(to)).Inc()
	s.journal(r)
	return r, nil
}

func (s *Service) journal(r *models.Ride) {
	if s.Journal == nil {
		return
	}
	if err := s.Journal.Publish(r.ID, models.RideEvent{RideID: r.ID, Status: r.Status}); err != nil {
		s.Logger.Warn("journal publish failed", "ride_id", r.ID, "error", err)
	}
}

// Current returns the caller's newest non-terminal ride, or nil.
func (s *Service) Current(userID string) (*models.Ride, error) {
	all, err := s.Store.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	var current *models.Ride
	for _, r := range all {
		if r.Status.Terminal() {
			continue
		}
		if current == nil || r.CreatedAt.After(current.CreatedAt) {
			current = r
		}
	}
	return current, nil
}

// History returns the caller's finished rides.
func (s *Service) History(userID string) ([]*models.Ride, error) {
	all, err := s.Store.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Ride, 0, len(all))
	for _, r := range all {
		if r.Status.Terminal() {
			out = append(out, r)
		}
	}
	return out, nil
}

// Available returns every ride still waiting for a driver.
func (s *Service) Available() ([]*models.Ride, error) {
	return s.Store.ListByStatus(models.StatusRequested)
}
