package coordinator

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/dashboard"
	"github.com/arkeep-io/relaycast/internal/retention"
	"github.com/arkeep-io/relaycast/internal/wire"
)

// fakeReceiver accepts one connection and records the delivery it gets.
type fakeReceiver struct {
	lis      net.Listener
	received chan wire.Delivery
}

func newFakeReceiver(t *testing.T) *fakeReceiver {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fr := &fakeReceiver{lis: lis, received: make(chan wire.Delivery, 8)}
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			var d wire.Delivery
			if err := wire.ReadFrame(conn, &d); err == nil {
				fr.received <- d
			}
			conn.Close()
		}
	}()
	t.Cleanup(func() { lis.Close() })
	return fr
}

func (f *fakeReceiver) addr() string { return f.lis.Addr().String() }

func TestMulticastDeliversToOnlineRecipient(t *testing.T) {
	now := time.Unix(100, 0)
	clock := func() time.Time { return now }
	state := newTestState(t, 60*time.Second, clock)
	metrics := NewMetrics(state)
	hub := dashboard.NewHub()
	d := NewDispatcherWithClock(state, metrics, hub, zap.NewNop(), clock)

	recv := newFakeReceiver(t)
	_ = state.Register("b", recv.addr())

	d.Multicast("a", "hello")

	select {
	case delivery := <-recv.received:
		if delivery.SenderID != "a" || delivery.Message != "hello" {
			t.Fatalf("delivery = %+v", delivery)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recipient never received the delivery")
	}
}

func TestMulticastDemotesUnreachableRecipient(t *testing.T) {
	now := time.Unix(200, 0)
	clock := func() time.Time { return now }
	state := newTestState(t, 60*time.Second, clock)
	metrics := NewMetrics(state)
	hub := dashboard.NewHub()
	d := NewDispatcherWithClock(state, metrics, hub, zap.NewNop(), clock)

	// Bind and immediately close to get a port nothing is listening on.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	deadAddr := lis.Addr().String()
	lis.Close()

	_ = state.Register("b", deadAddr)

	d.Multicast("a", "m")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, _ := state.Get("b")
		if rec.Status.String() == "offline" {
			if !rec.LastOfflineAt.Equal(now) {
				t.Fatalf("LastOfflineAt = %v, want %v", rec.LastOfflineAt, now)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("recipient was never demoted to offline")
}

func TestReplayDeliversEntriesInOrder(t *testing.T) {
	now := time.Unix(300, 0)
	clock := func() time.Time { return now }
	state := newTestState(t, 60*time.Second, clock)
	metrics := NewMetrics(state)
	hub := dashboard.NewHub()
	d := NewDispatcherWithClock(state, metrics, hub, zap.NewNop(), clock)

	recv := newFakeReceiver(t)

	toReplay := []retention.Entry{
		{SenderID: "a", Body: "a1", AcceptedAt: now},
		{SenderID: "a", Body: "a2", AcceptedAt: now},
	}

	d.Replay("b", recv.addr(), toReplay)

	for i := range toReplay {
		select {
		case got := <-recv.received:
			if got.Message != toReplay[i].Body {
				t.Fatalf("entry %d: got %q, want %q", i, got.Message, toReplay[i].Body)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("entry %d never arrived", i)
		}
	}
}
