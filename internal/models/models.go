package models

import "time"

// Status is a ride lifecycle state. Transitions between statuses are
// validated by the rides service; nothing else writes Ride.Status.
type Status string

const (
	StatusRequested  Status = "requested"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Location is a point on the map, optionally with a display address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// Ride is one requested-to-completed (or cancelled) trip.
// Fare, distance and duration are estimated once at creation and never
// recomputed on transitions.
type Ride struct {
	ID        string    `json:"id"`
	RiderID   string    `json:"riderId"`
	DriverID  string    `json:"driverId,omitempty"`
	Pickup    Location  `json:"pickup"`
	Dropoff   Location  `json:"dropoff"`
	Status    Status    `json:"status"`
	Fare      float64   `json:"fare"`
	Distance  float64   `json:"distance"` // miles
	Duration  float64   `json:"duration"` // seconds
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UserType string

const (
	UserTypeRider  UserType = "rider"
	UserTypeDriver UserType = "driver"
)

// User is the identity referenced by RiderID/DriverID. Passwords are kept
// in the clear; this is a demo system and hashing is out of scope.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	UserType    UserType  `json:"userType"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RideAccepted is the payload delivered to the rider's channel when a
// driver takes the ride.
type RideAccepted struct {
	RideID   string `json:"rideId"`
	DriverID string `json:"driverId"`
}

// RideEvent references a ride in started/completed/cancelled notifications
// and in the Kafka lifecycle journal.
type RideEvent struct {
	RideID string `json:"rideId"`
	Status Status `json:"status,omitempty"`
}

// DriverLocation is a driver's position report, routed point-to-point to
// the matched rider and cached as the driver's last known location.
type DriverLocation struct {
	DriverID string    `json:"driverId"`
	RiderID  string    `json:"riderId"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Heading  float64   `json:"heading,omitempty"`
	Updated  time.Time `json:"updated,omitempty"`
}

// FareEstimate is the response of the fare calculator.
type FareEstimate struct {
	Fare     float64 `json:"fare"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}
