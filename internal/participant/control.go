package participant

import (
	"fmt"
	"net"
	"time"

	"github.com/arkeep-io/relaycast/internal/wire"
)

// dialTimeout bounds the control client's connection attempt to the
// coordinator.
const dialTimeout = 3 * time.Second

// ControlClient issues control requests to the coordinator over the wire
// protocol (spec §6.1). It opens a fresh connection per request, matching
// the coordinator's one-request-per-connection contract (spec §4.3).
type ControlClient struct {
	coordinatorAddr string
}

// NewControlClient creates a client targeting the given coordinator
// "host:port" address.
func NewControlClient(coordinatorAddr string) *ControlClient {
	return &ControlClient{coordinatorAddr: coordinatorAddr}
}

// Send issues req and waits for the coordinator's ack. A non-nil error means
// the request was not acked — either a transport failure or a malformed
// rejection — and the caller must not advance local state (spec §4.6, §7
// "transport failure to coordinator").
func (c *ControlClient) Send(req wire.Request) error {
	conn, err := net.DialTimeout("tcp", c.coordinatorAddr, dialTimeout)
	if err != nil {
		return fmt.Errorf("control: dial coordinator: %w", err)
	}
	defer conn.Close()

	if err := wire.WriteFrame(conn, req); err != nil {
		return fmt.Errorf("control: send request: %w", err)
	}

	var reply wire.Reply
	if err := wire.ReadFrame(conn, &reply); err != nil {
		return fmt.Errorf("control: read reply: %w", err)
	}

	if reply.Status != wire.StatusAck {
		return fmt.Errorf("control: coordinator rejected request: %s", reply.Reason)
	}

	return nil
}
