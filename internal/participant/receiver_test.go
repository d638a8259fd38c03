package participant

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/wire"
)

type recordingSink struct {
	appended chan struct {
		senderID, body string
		acceptedAt     time.Time
	}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{appended: make(chan struct {
		senderID, body string
		acceptedAt     time.Time
	}, 4)}
}

func (s *recordingSink) Append(senderID, body string, acceptedAt time.Time) error {
	s.appended <- struct {
		senderID, body string
		acceptedAt     time.Time
	}{senderID, body, acceptedAt}
	return nil
}

func TestReceiverDecodesDeliveryIntoSink(t *testing.T) {
	sink := newRecordingSink()
	recv, port, err := Listen("127.0.0.1:0", sink, zap.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go recv.Serve()
	defer recv.Stop()

	if port == 0 {
		t.Fatal("expected a nonzero assigned port")
	}

	conn, err := net.DialTimeout("tcp", recv.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	at := time.Unix(123, 0).UTC()
	if err := wire.WriteFrame(conn, wire.NewDelivery("alice", "hello", at)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	select {
	case got := <-sink.appended:
		if got.senderID != "alice" || got.body != "hello" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never reached the sink")
	}
}

func TestReceiverStopIsCooperative(t *testing.T) {
	sink := newRecordingSink()
	recv, _, err := Listen("127.0.0.1:0", sink, zap.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		recv.Serve()
		close(done)
	}()

	recv.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve never returned after Stop")
	}
}
