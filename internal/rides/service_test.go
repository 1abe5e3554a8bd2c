package rides

import (
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/example/ride-hail/internal/fare"
	"github.com/example/ride-hail/internal/models"
	"github.com/example/ride-hail/internal/storage"
)

type broadcastCall struct {
	channel string
	event   string
	payload any
}

type fakeRouter struct {
	mu      sync.Mutex
	calls   []broadcastCall
	noOneIn bool // simulate empty channels: every broadcast delivers zero
}

func (f *fakeRouter) Broadcast(channel, event string, payload any, except ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{channel, event, payload})
	if f.noOneIn {
		return 0
	}
	return 1
}

func (f *fakeRouter) byEvent(event string) []broadcastCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []broadcastCall
	for _, c := range f.calls {
		if c.event == event {
			out = append(out, c)
		}
	}
	return out
}

func newTestService() (*Service, *fakeRouter) {
	router := &fakeRouter{}
	svc := &Service{
		Store:  storage.NewMemoryStore(),
		Router: router,
		Fares:  fare.NewEstimator(10),
		Logger: slog.Default(),
	}
	return svc, router
}

var (
	nyc    = models.Location{Lat: 40.7128, Lng: -74.0060, Address: "120 Broadway, New York, NY"}
	empire = models.Location{Lat: 40.7484, Lng: -73.9857, Address: "Empire State Building, NY"}
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []broadcastCall
	err   error
}

func (f *fakeNotifier) Notify(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{event: event, payload: payload})
	return f.err
}

func TestRequestFallsBackToPushWhenNoDriverReceived(t *testing.T) {
	svc, router := newTestService()
	router.noOneIn = true
	push := &fakeNotifier{}
	svc.Push = push

	r, err := svc.Request("u1", nyc, empire)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(push.calls) != 1 || push.calls[0].event != "new-ride" {
		t.Fatalf("expected one new-ride push, got %v", push.calls)
	}
	if ride, ok := push.calls[0].payload.(*models.Ride); !ok || ride.ID != r.ID {
		t.Fatalf("unexpected push payload %+v", push.calls[0].payload)
	}
}

func TestRequestSkipsPushWhenDriversReceived(t *testing.T) {
	svc, _ := newTestService()
	push := &fakeNotifier{}
	svc.Push = push

	if _, err := svc.Request("u1", nyc, empire); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(push.calls) != 0 {
		t.Fatalf("expected no push when a driver session received the event, got %v", push.calls)
	}
}

func TestRequestPushErrorDoesNotFailRequest(t *testing.T) {
	svc, router := newTestService()
	router.noOneIn = true
	svc.Push = &fakeNotifier{err: errors.New("provider down")}

	r, err := svc.Request("u1", nyc, empire)
	if err != nil {
		t.Fatalf("request must succeed despite push failure: %v", err)
	}
	if got, err := svc.Store.Get(r.ID); err != nil || got.Status != models.StatusRequested {
		t.Fatalf("ride must be persisted, got %+v err=%v", got, err)
	}
}

func TestRequestCreatesRideAndNotifiesDrivers(t *testing.T) {
	svc, router := newTestService()
	r, err := svc.Request("u1", nyc, empire)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if r.Status != models.StatusRequested {
		t.Fatalf("expected requested, got %s", r.Status)
	}
	if r.DriverID != "" {
		t.Fatalf("driver must be unset on creation, got %q", r.DriverID)
	}
	if r.Fare <= 0 || r.Distance <= 0 || r.Duration <= 0 {
		t.Fatalf("expected estimates, got fare=%f distance=%f duration=%f", r.Fare, r.Distance, r.Duration)
	}
	calls := router.byEvent("new-ride")
	if len(calls) != 1 || calls[0].channel != "drivers" {
		t.Fatalf("expected one new-ride to drivers, got %v", calls)
	}
}

func TestAcceptTransitionsAndNotifiesRiderOnly(t *testing.T) {
	svc, router := newTestService()
	r, _ := svc.Request("u1", nyc, empire)

	got, err := svc.Accept(r.ID, "d1")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if got.Status != models.StatusAccepted || got.DriverID != "d1" {
		t.Fatalf("unexpected ride after accept: %+v", got)
	}
	calls := router.byEvent("ride-accepted")
	if len(calls) != 1 {
		t.Fatalf("expected exactly one ride-accepted, got %d", len(calls))
	}
	if calls[0].channel != "rider-u1" {
		t.Fatalf("expected rider-u1 channel, got %s", calls[0].channel)
	}
	payload, ok := calls[0].payload.(models.RideAccepted)
	if !ok || payload.RideID != r.ID || payload.DriverID != "d1" {
		t.Fatalf("unexpected payload %+v", calls[0].payload)
	}
}

func TestAcceptFailsOutsideRequested(t *testing.T) {
	svc, router := newTestService()
	r, _ := svc.Request("u1", nyc, empire)
	if _, err := svc.Accept(r.ID, "d1"); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}

	_, err := svc.Accept(r.ID, "d2")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	stored, _ := svc.Store.Get(r.ID)
	if stored.DriverID != "d1" {
		t.Fatalf("driver must never be reassigned, got %q", stored.DriverID)
	}
	if calls := router.byEvent("ride-accepted"); len(calls) != 1 {
		t.Fatalf("failed accept must not broadcast, got %d events", len(calls))
	}
}

func TestAcceptUnknownRide(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Accept("missing", "d1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	svc, router := newTestService()
	r, _ := svc.Request("u1", nyc, empire)

	const drivers = 8
	errs := make([]error, drivers)
	var wg sync.WaitGroup
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Accept(r.ID, string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidTransition):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning accept, got %d", wins)
	}
	if calls := router.byEvent("ride-accepted"); len(calls) != 1 {
		t.Fatalf("expected exactly one ride-accepted broadcast, got %d", len(calls))
	}
}

func TestFullLifecycle(t *testing.T) {
	svc, router := newTestService()
	r, _ := svc.Request("u1", nyc, empire)

	if _, err := svc.Accept(r.ID, "d1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Start(r.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	got, err := svc.Complete(r.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if calls := router.byEvent("ride-completed"); len(calls) != 1 || calls[0].channel != "rider-u1" {
		t.Fatalf("expected one ride-completed to rider-u1, got %v", calls)
	}

	// a second complete must fail and leave the ride untouched
	if _, err := svc.Complete(r.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double complete, got %v", err)
	}
}

func TestCompleteSkippingStart(t *testing.T) {
	svc, _ := newTestService()
	r, _ := svc.Request("u1", nyc, empire)
	svc.Accept(r.ID, "d1")
	if _, err := svc.Complete(r.ID); err != nil {
		t.Fatalf("complete from accepted should be legal: %v", err)
	}
}

func TestCancelNotifiesDriverOnlyWhenBound(t *testing.T) {
	svc, router := newTestService()

	// cancel before accept: no driver to tell
	r1, _ := svc.Request("u1", nyc, empire)
	if _, err := svc.Cancel(r1.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if calls := router.byEvent("ride-cancelled"); len(calls) != 0 {
		t.Fatalf("expected no ride-cancelled, got %v", calls)
	}

	// cancel after accept: bound driver is told
	r2, _ := svc.Request("u1", nyc, empire)
	svc.Accept(r2.ID, "d1")
	if _, err := svc.Cancel(r2.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	calls := router.byEvent("ride-cancelled")
	if len(calls) != 1 || calls[0].channel != "driver-d1" {
		t.Fatalf("expected one ride-cancelled to driver-d1, got %v", calls)
	}
}

func TestCancelAfterCompleteFails(t *testing.T) {
	svc, _ := newTestService()
	r, _ := svc.Request("u1", nyc, empire)
	svc.Accept(r.ID, "d1")
	svc.Complete(r.ID)

	if _, err := svc.Cancel(r.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	stored, _ := svc.Store.Get(r.ID)
	if stored.Status != models.StatusCompleted {
		t.Fatalf("ride must remain completed, got %s", stored.Status)
	}
}

func TestStartRequiresAccepted(t *testing.T) {
	svc, _ := newTestService()
	r, _ := svc.Request("u1", nyc, empire)
	if _, err := svc.Start(r.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestQueries(t *testing.T) {
	svc, _ := newTestService()
	r1, _ := svc.Request("u1", nyc, empire)
	r2, _ := svc.Request("u1", empire, nyc)
	svc.Accept(r1.ID, "d1")
	svc.Complete(r1.ID)

	cur, err := svc.Current("u1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur == nil || cur.ID != r2.ID {
		t.Fatalf("expected current ride %s, got %+v", r2.ID, cur)
	}

	hist, _ := svc.History("u1")
	if len(hist) != 1 || hist[0].ID != r1.ID {
		t.Fatalf("unexpected history %v", hist)
	}

	avail, _ := svc.Available()
	if len(avail) != 1 || avail[0].ID != r2.ID {
		t.Fatalf("unexpected available %v", avail)
	}

	// driver sees the ride they served
	dcur, _ := svc.Current("d1")
	if dcur != nil {
		t.Fatalf("driver has no active ride, got %+v", dcur)
	}
	dhist, _ := svc.History("d1")
	if len(dhist) != 1 || dhist[0].ID != r1.ID {
		t.Fatalf("unexpected driver history %v", dhist)
	}
}
