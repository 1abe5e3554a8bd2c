package dispatch

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/example/ride-hail/internal/rooms"
)

type recordedSend struct {
	connID string
	event  string
}

type recordingSender struct {
	mu    sync.Mutex
	sends []recordedSend
	fail  map[string]bool // connIDs whose sends error
}

func (r *recordingSender) Send(connID, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[connID] {
		return errors.New("dead connection")
	}
	r.sends = append(r.sends, recordedSend{connID, event})
	return nil
}

func (r *recordingSender) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sends))
	for _, s := range r.sends {
		out = append(out, s.connID)
	}
	sort.Strings(out)
	return out
}

func newTestRouter(sender Sender) (*Router, *rooms.Registry) {
	reg := rooms.NewRegistry()
	return NewRouter(reg, sender, slog.Default()), reg
}

func TestBroadcastReachesOnlyChannelMembers(t *testing.T) {
	sender := &recordingSender{}
	router, reg := newTestRouter(sender)
	reg.Join("d1", rooms.Drivers)
	reg.Join("d2", rooms.Drivers)
	reg.Join("r1", "rider-u1")

	n := router.Broadcast(rooms.Drivers, "new-ride", map[string]string{"id": "ride-1"})
	if n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	got := sender.recipients()
	if len(got) != 2 || got[0] != "d1" || got[1] != "d2" {
		t.Fatalf("unexpected recipients %v", got)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	sender := &recordingSender{}
	router, reg := newTestRouter(sender)
	reg.Join("d1", rooms.Drivers)
	reg.Join("d2", rooms.Drivers)

	router.Broadcast(rooms.Drivers, "new-ride", nil, "d1")
	got := sender.recipients()
	if len(got) != 1 || got[0] != "d2" {
		t.Fatalf("expected only d2, got %v", got)
	}
}

func TestBroadcastDropsFailedSends(t *testing.T) {
	sender := &recordingSender{fail: map[string]bool{"dead": true}}
	router, reg := newTestRouter(sender)
	reg.Join("dead", rooms.Drivers)
	reg.Join("live", rooms.Drivers)

	n := router.Broadcast(rooms.Drivers, "new-ride", nil)
	if n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
}

func TestBroadcastToEmptyChannel(t *testing.T) {
	sender := &recordingSender{}
	router, _ := newTestRouter(sender)
	if n := router.Broadcast("rider-ghost", "ride-accepted", nil); n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
}

func TestHubSendWithoutSession(t *testing.T) {
	if err := NewHub().Send("nope", "ride-accepted", nil); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestDisconnectedConnectionNeverReceives(t *testing.T) {
	sender := &recordingSender{}
	router, reg := newTestRouter(sender)
	reg.Join("c1", rooms.Drivers)
	reg.Join("c1", "driver-d1")
	reg.LeaveAll("c1")

	router.Broadcast(rooms.Drivers, "new-ride", nil)
	router.Broadcast("driver-d1", "ride-cancelled", nil)
	if got := sender.recipients(); len(got) != 0 {
		t.Fatalf("expected no deliveries, got %v", got)
	}
}
