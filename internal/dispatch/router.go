package dispatch

import (
	"log/slog"

	"github.com/example/ride-hail/internal/observability"
	"github.com/example/ride-hail/internal/rooms"
)

// Sender delivers a single event to a single connection. The production
// implementation is the websocket Hub; tests substitute a recorder.
type Sender interface {
	Send(connID, event string, payload any) error
}

// Router fans events out to every live member of a channel. Delivery is
// best-effort and fire-and-forget: a send error or a missing session only
// bumps a counter, it never reaches the caller.
type Router struct {
	Rooms  *rooms.Registry
	Sender Sender
	Logger *slog.Logger
}

func NewRouter(reg *rooms.Registry, sender Sender, logger *slog.Logger) *Router {
	return &Router{Rooms: reg, Sender: sender, Logger: logger}
}

// Broadcast delivers payload to every connection in the channel, minus the
// excluded connection ids. It returns the number of live recipients.
func (r *Router) Broadcast(channel, event string, payload any, except ...string) int {
	members := r.Rooms.MembersOf(channel)
	delivered := 0
	for _, connID := range members {
		if excluded(connID, except) {
			continue
		}
		if err := r.Sender.Send(connID, event, payload); err != nil {
			observability.DeliveriesDropped.Inc()
			r.Logger.Debug("event dropped", "channel", channel, "event", event, "conn", connID, "error", err)
			continue
		}
		delivered++
	}
	observability.EventsBroadcast.WithLabelValues(event).Inc()
	if delivered == 0 {
		// no live recipient; accepted staleness, clients refetch over REST
		r.Logger.Debug("no recipients", "channel", channel, "event", event)
	}
	return delivered
}

func excluded(connID string, except []string) bool {
	for _, e := range except {
		if e == connID {
			return true
		}
	}
	return false
}
