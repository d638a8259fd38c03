package coordinator

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/dashboard"
	"github.com/arkeep-io/relaycast/internal/membership"
	"github.com/arkeep-io/relaycast/internal/retention"
	"github.com/arkeep-io/relaycast/internal/wire"
)

// dialTimeout bounds how long the dispatcher waits to open an outbound
// connection to a recipient's receiver endpoint before counting it as a
// dispatch failure.
const dialTimeout = 3 * time.Second

// Dispatcher fans out accepted multicasts to online recipients (spec §4.4)
// and replays retained entries to reconnecting participants (spec §4.2),
// publishing operational events to an optional dashboard hub along the way.
type Dispatcher struct {
	state   *State
	metrics *Metrics
	hub     *dashboard.Hub
	logger  *zap.Logger
	clock   func() time.Time
}

// NewDispatcher creates a Dispatcher. hub may be nil — events are simply
// not published in that case.
func NewDispatcher(state *State, metrics *Metrics, hub *dashboard.Hub, logger *zap.Logger) *Dispatcher {
	return NewDispatcherWithClock(state, metrics, hub, logger, time.Now)
}

// NewDispatcherWithClock is NewDispatcher with an injectable clock, for
// deterministic event timestamps in tests.
func NewDispatcherWithClock(state *State, metrics *Metrics, hub *dashboard.Hub, logger *zap.Logger, clock func() time.Time) *Dispatcher {
	return &Dispatcher{state: state, metrics: metrics, hub: hub, logger: logger.Named("dispatch"), clock: clock}
}

// Multicast accepts a multicast from senderID and fans it out to every
// participant that was online at acceptance time (spec §4.4). Delivery is
// independent per recipient: one failure never aborts the others, and a
// failed recipient is demoted to Offline so it qualifies for replay on its
// next reconnect (spec §4.4, §8 property 6).
//
// Per spec §9 "Self-delivery ambiguity", the sender receives its own
// message if it is itself in the online snapshot — no special case excludes
// it (see DESIGN.md Open Question 1).
func (d *Dispatcher) Multicast(senderID, body string) {
	entry, recipients := d.state.AcceptMulticast(senderID, body)

	d.publish(dashboard.Event{
		Type:     dashboard.EventMulticastAccepted,
		SenderID: senderID,
		At:       entry.AcceptedAt,
	})

	delivery := wire.NewDelivery(entry.SenderID, entry.Body, entry.AcceptedAt)

	for _, recipient := range recipients {
		d.deliverOne(recipient, delivery)
	}
}

// deliverOne opens a fresh outbound connection to recipient's receiver
// endpoint, writes the delivery frame, and closes. On failure it demotes
// the recipient to Offline (spec §4.4) — this happens outside the table
// lock, consistent with §5's "no operation takes the lock while performing
// network I/O to a recipient".
func (d *Dispatcher) deliverOne(recipient membership.OnlineMember, delivery wire.Delivery) {
	if d.metrics != nil {
		d.metrics.DispatchAttempts.Inc()
	}

	if err := d.send(recipient.Address, delivery); err != nil {
		d.logger.Warn("dispatch failed, demoting recipient to offline",
			zap.String("participant_id", recipient.ID),
			zap.String("address", recipient.Address),
			zap.Error(err),
		)
		if d.metrics != nil {
			d.metrics.DispatchFailures.Inc()
		}
		d.state.MarkOffline(recipient.ID)
		d.publish(dashboard.Event{
			Type:          dashboard.EventParticipantOffline,
			ParticipantID: recipient.ID,
			At:            d.clock(),
		})
		d.publish(dashboard.Event{
			Type:          dashboard.EventMulticastFailed,
			ParticipantID: recipient.ID,
			SenderID:      delivery.SenderID,
			At:            d.clock(),
		})
		return
	}

	d.publish(dashboard.Event{
		Type:          dashboard.EventMulticastDelivered,
		ParticipantID: recipient.ID,
		SenderID:      delivery.SenderID,
		At:            d.clock(),
	})
}

// send performs the actual dial/write/close for a single delivery.
func (d *Dispatcher) send(address string, delivery wire.Delivery) error {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial recipient: %w", err)
	}
	defer conn.Close()

	if err := wire.WriteFrame(conn, delivery); err != nil {
		return fmt.Errorf("write delivery: %w", err)
	}
	return nil
}

// Replay delivers every retained entry in entries to the participant at
// address, in order, synchronously (spec §4.2 "replay is issued
// synchronously during the reconnect handler"). A failure delivering one
// replayed entry does not abort the rest, mirroring live dispatch, but does
// not demote the participant — it was just reconnected, so the failure more
// likely indicates its freshly-opened receiver endpoint is still starting
// up than that it is unreachable; the next multicast's own dispatch attempt
// will demote it if the address really is bad.
func (d *Dispatcher) Replay(participantID, address string, entries []retention.Entry) {
	if len(entries) == 0 {
		return
	}

	for _, e := range entries {
		delivery := wire.NewDelivery(e.SenderID, e.Body, e.AcceptedAt)
		if err := d.send(address, delivery); err != nil {
			d.logger.Warn("replay delivery failed",
				zap.String("participant_id", participantID),
				zap.String("address", address),
				zap.Error(err),
			)
			continue
		}
		if d.metrics != nil {
			d.metrics.ReplayMessages.Inc()
		}
	}

	d.publish(dashboard.Event{
		Type:          dashboard.EventReplayed,
		ParticipantID: participantID,
		Count:         len(entries),
		At:            d.clock(),
	})
}

func (d *Dispatcher) publish(ev dashboard.Event) {
	if d.hub != nil {
		d.hub.Publish(ev)
	}
}

// PublishEvent lets the request dispatcher (server.go) publish membership
// lifecycle events (register/deregister/disconnect) through the same
// dashboard hub used for multicast and replay events, without exposing the
// hub field itself.
func (d *Dispatcher) PublishEvent(ev dashboard.Event) {
	d.publish(ev)
}

// Now returns the dispatcher's clock, for callers that need a consistent
// "now" when building events outside the locked State methods.
func (d *Dispatcher) Now() time.Time {
	return d.clock()
}
