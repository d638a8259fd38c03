package participant

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/wire"
)

// fakeCoordinator acks every request it receives, satisfying the control
// client's wire contract without running the real coordinator package.
func fakeCoordinator(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				var req wire.Request
				if err := wire.ReadFrame(conn, &req); err != nil {
					return
				}
				_ = wire.WriteFrame(conn, wire.Reply{Status: wire.StatusAck})
			}()
		}
	}()
	t.Cleanup(func() { lis.Close() })
	return lis.Addr().String()
}

func newTestParticipant(t *testing.T, id string) *Participant {
	t.Helper()
	coordAddr := fakeCoordinator(t)
	sink := NewLogSink(filepath.Join(t.TempDir(), "recv.log"), os.Stdout)
	t.Cleanup(func() { sink.Close() })
	return New(id, "127.0.0.1", coordAddr, sink, zap.NewNop())
}

func TestParticipantRegisterAdvancesState(t *testing.T) {
	p := newTestParticipant(t, "alice")

	if err := p.Register(0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.State() != Registered {
		t.Fatalf("state = %v, want Registered", p.State())
	}
	p.Exit()
}

func TestParticipantRegisterTwiceRejected(t *testing.T) {
	p := newTestParticipant(t, "alice")
	_ = p.Register(0)
	defer p.Exit()

	if err := p.Register(0); err != ErrAlreadyRegistered {
		t.Fatalf("err = %v, want ErrAlreadyRegistered", err)
	}
}

func TestParticipantMsendRequiresRegistered(t *testing.T) {
	p := newTestParticipant(t, "alice")

	if err := p.Msend("hi"); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestParticipantDisconnectThenReconnect(t *testing.T) {
	p := newTestParticipant(t, "alice")
	_ = p.Register(0)
	defer p.Exit()

	if err := p.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if p.State() != Disconnected {
		t.Fatalf("state = %v, want Disconnected", p.State())
	}

	if err := p.Reconnect(0); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if p.State() != Registered {
		t.Fatalf("state = %v, want Registered", p.State())
	}
}

func TestParticipantExitImplicitlyDeregisters(t *testing.T) {
	p := newTestParticipant(t, "alice")
	_ = p.Register(0)

	p.Exit()
	if p.State() != Unregistered {
		t.Fatalf("state = %v, want Unregistered", p.State())
	}
}

func TestParticipantDeregisterWhenUnregisteredRejected(t *testing.T) {
	p := newTestParticipant(t, "alice")
	if err := p.Deregister(); err != ErrNotRegistered {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
}
