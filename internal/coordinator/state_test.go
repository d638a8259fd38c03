package coordinator

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestState(t *testing.T, window time.Duration, clock func() time.Time) *State {
	t.Helper()
	return NewStateWithClock(window, clock, zap.NewNop())
}

// S1 — basic multicast, including the self-delivery policy (spec §9, §13
// Open Question 1): the sender is part of the online snapshot like anyone
// else.
func TestAcceptMulticastSnapshotIncludesSender(t *testing.T) {
	s := newTestState(t, 60*time.Second, func() time.Time { return time.Unix(2, 0) })
	_ = s.Register("a", "addr-a")

	_, recipients := s.AcceptMulticast("a", "hello")
	if len(recipients) != 1 || recipients[0].ID != "a" {
		t.Fatalf("recipients = %+v, want [a]", recipients)
	}
}

func TestAcceptMulticastSnapshotExcludesOfflineMembers(t *testing.T) {
	now := time.Unix(2, 0)
	s := newTestState(t, 60*time.Second, func() time.Time { return now })
	_ = s.Register("a", "addr-a")
	_ = s.Register("b", "addr-b")
	_ = s.Disconnect("b")

	_, recipients := s.AcceptMulticast("a", "hello")
	if len(recipients) != 1 || recipients[0].ID != "a" {
		t.Fatalf("recipients = %+v, want [a]", recipients)
	}
}

// S5 — deregister forfeits history.
func TestReregisterAfterDeregisterReceivesNoHistory(t *testing.T) {
	cur := time.Unix(0, 0)
	clock := func() time.Time { return cur }
	s := newTestState(t, 60*time.Second, clock)

	_ = s.Register("b", "addr-b")
	cur = time.Unix(5, 0)
	_ = s.Deregister("b")

	cur = time.Unix(10, 0)
	_, _ = s.AcceptMulticast("a", "m")

	cur = time.Unix(15, 0)
	if err := s.Register("b", "addr-b2"); err != nil {
		t.Fatalf("re-Register: %v", err)
	}

	rec, _ := s.Get("b")
	if rec.Address != "addr-b2" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	// A fresh register carries no offline history, so a subsequent Reconnect
	// is illegal (it's Online already) — the absence of replay is enforced
	// structurally: Register never returns retained entries.
}

func TestReconnectReplaysEntriesSinceDisconnect(t *testing.T) {
	cur := time.Unix(0, 0)
	clock := func() time.Time { return cur }
	s := newTestState(t, 60*time.Second, clock)

	_ = s.Register("b", "addr-b")
	cur = time.Unix(10, 0)
	_ = s.Disconnect("b")

	cur = time.Unix(20, 0)
	_, _ = s.AcceptMulticast("a", "x")
	cur = time.Unix(30, 0)
	_, _ = s.AcceptMulticast("a", "y")

	cur = time.Unix(40, 0)
	entries, err := s.Reconnect("b", "addr-b2")
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if len(entries) != 2 || entries[0].Body != "x" || entries[1].Body != "y" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestMarkOfflineThenReconnectReplaysFailedMulticast(t *testing.T) {
	cur := time.Unix(0, 0)
	clock := func() time.Time { return cur }
	s := newTestState(t, 60*time.Second, clock)

	_ = s.Register("a", "addr-a")
	_ = s.Register("b", "addr-b")

	cur = time.Unix(5, 0)
	entry, recipients := s.AcceptMulticast("a", "m")
	_ = entry
	for _, r := range recipients {
		if r.ID == "b" {
			s.MarkOffline("b")
		}
	}

	rec, _ := s.Get("b")
	if rec.Status.String() != "offline" {
		t.Fatalf("status = %v, want offline", rec.Status)
	}

	cur = time.Unix(10, 0)
	entries, err := s.Reconnect("b", "addr-b2")
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if len(entries) != 1 || entries[0].Body != "m" {
		t.Fatalf("entries = %+v, want [m]", entries)
	}
}
