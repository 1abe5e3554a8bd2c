package rooms

import "testing"

func TestJoinIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Join("c1", "rider-u1")
	r.Join("c1", "rider-u1")
	if got := r.MembersOf("rider-u1"); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("expected single membership, got %v", got)
	}
}

func TestLeaveAllRemovesEveryMembership(t *testing.T) {
	r := NewRegistry()
	r.Join("c1", "driver-d1")
	r.Join("c1", Drivers)
	r.Join("c2", Drivers)

	r.LeaveAll("c1")

	if got := r.MembersOf("driver-d1"); len(got) != 0 {
		t.Fatalf("expected empty private channel, got %v", got)
	}
	if got := r.MembersOf(Drivers); len(got) != 1 || got[0] != "c2" {
		t.Fatalf("expected only c2 in drivers, got %v", got)
	}
}

func TestLeaveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Leave("nope", "rider-u1")
	r.LeaveAll("nope")
	if got := r.MembersOf("rider-u1"); len(got) != 0 {
		t.Fatalf("expected empty channel, got %v", got)
	}
}

func TestPrivateChannelName(t *testing.T) {
	if got := Private("driver", "d7"); got != "driver-d7" {
		t.Fatalf("got %q", got)
	}
}
