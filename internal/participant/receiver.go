package participant

import (
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/wire"
)

// acceptPollInterval bounds how long Accept blocks before Receiver rechecks
// its stop signal, giving cooperative shutdown without relying on Close
// unblocking a concurrent Accept on every platform (spec §5 "short accept
// timeout is the portable mechanism").
const acceptPollInterval = 500 * time.Millisecond

// Sink receives one fully-decoded delivery per inbound connection.
type Sink interface {
	Append(senderID, body string, acceptedAt time.Time) error
}

// Receiver is a participant's receiver endpoint (spec §4.5): its own
// listening socket, bound at register/reconnect time and torn down on
// deregister, disconnect, or process exit.
type Receiver struct {
	lis     net.Listener
	sink    Sink
	logger  *zap.Logger
	stop    chan struct{}
	stopped chan struct{}
}

// Listen binds a receiver endpoint on the given local address ("" host
// binds all interfaces). Returns the bound *Receiver along with the port the
// OS assigned, ready to be reported in a register/reconnect request — the
// participant must bind before sending that request (spec §4.5).
func Listen(addr string, sink Sink, logger *zap.Logger) (*Receiver, int, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, 0, err
	}

	port := lis.Addr().(*net.TCPAddr).Port

	r := &Receiver{
		lis:     lis,
		sink:    sink,
		logger:  logger.Named("receiver"),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	return r, port, nil
}

// Serve runs the accept loop until Stop is called. Run it in its own
// goroutine.
func (r *Receiver) Serve() {
	defer close(r.stopped)

	type deadliner interface {
		SetDeadline(time.Time) error
	}

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		if tl, ok := r.lis.(deadliner); ok {
			_ = tl.SetDeadline(time.Now().Add(acceptPollInterval))
		}

		conn, err := r.lis.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			select {
			case <-r.stop:
				return
			default:
				r.logger.Warn("accept failed", zap.Error(err))
				continue
			}
		}

		go r.handle(conn)
	}
}

// handle decodes exactly one delivery frame and appends it to the sink
// (spec §4.5).
func (r *Receiver) handle(conn net.Conn) {
	defer conn.Close()

	var d wire.Delivery
	if err := wire.ReadFrame(conn, &d); err != nil {
		r.logger.Warn("malformed delivery, dropping", zap.Error(err))
		return
	}

	if err := r.sink.Append(d.SenderID, d.Message, d.Time()); err != nil {
		// Local log write failure: log to stderr and continue (spec §7) —
		// the multicast is still considered delivered from the
		// coordinator's perspective.
		r.logger.Error("local log write failed", zap.Error(err))
	}
}

// Stop closes the listener and waits for the accept loop to exit.
func (r *Receiver) Stop() {
	close(r.stop)
	_ = r.lis.Close()
	<-r.stopped
}

// Addr returns the receiver's bound network address.
func (r *Receiver) Addr() net.Addr {
	return r.lis.Addr()
}
