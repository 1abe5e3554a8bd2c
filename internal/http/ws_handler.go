package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/rooms"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin checks are the reverse proxy's job in this deployment
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is the envelope for every client->server event.
type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinMessage struct {
	UserID    string `json:"userId"`
	UserType  string `json:"userType"`
	Available *bool  `json:"available"`
}

type acceptMessage struct {
	RideID   string `json:"rideId"`
	DriverID string `json:"driverId"`
	RiderID  string `json:"riderId"`
}

// handleWS upgrades the connection and runs its read loop. A session owns
// no server-side state beyond its channel memberships, so disconnect
// cleanup is LeaveAll plus dropping the session; a reconnecting client
// re-declares its identity with a fresh join.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		s.logger.Debug("ws upgrade failed", "error", err)
		return
	}
	connID := s.Hub.Add(conn)
	s.logger.Info("ws connected", "conn", connID)

	defer func() {
		s.Rooms.LeaveAll(connID)
		s.Hub.Remove(connID)
		s.logger.Info("ws disconnected", "conn", connID)
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.handleWSMessage(connID, msg)
	}
}

func (s *Server) handleWSMessage(connID string, msg clientMessage) {
	switch msg.Event {
	case "join":
		var join joinMessage
		if err := json.Unmarshal(msg.Data, &join); err != nil || join.UserID == "" || join.UserType == "" {
			return
		}
		s.Rooms.Join(connID, rooms.Private(join.UserType, join.UserID))
		if join.UserType == string(models.UserTypeDriver) && (join.Available == nil || *join.Available) {
			s.Rooms.Join(connID, rooms.Drivers)
		}

	case "request-ride":
		// relay only; the ride record itself is created over REST
		var payload json.RawMessage = msg.Data
		s.Router.Broadcast(rooms.Drivers, "new-ride", payload, connID)

	case "accept-ride":
		var accept acceptMessage
		if err := json.Unmarshal(msg.Data, &accept); err != nil || accept.RiderID == "" {
			return
		}
		s.Router.Broadcast(rooms.Private("rider", accept.RiderID), "ride-accepted",
			models.RideAccepted{RideID: accept.RideID, DriverID: accept.DriverID}, connID)

	case "driver-location":
		var loc models.DriverLocation
		if err := json.Unmarshal(msg.Data, &loc); err != nil || loc.RiderID == "" {
			return
		}
		s.Router.Broadcast(rooms.Private("rider", loc.RiderID), "driver-location-update", loc, connID)
		s.Locations.Upsert(loc)
		if s.LocFeed != nil {
			if err := s.LocFeed.Publish(loc.DriverID, loc); err != nil {
				s.logger.Debug("location publish failed", "driver_id", loc.DriverID, "error", err)
			}
		}

	default:
		s.logger.Debug("unknown ws event", "conn", connID, "event", msg.Event)
	}
}
