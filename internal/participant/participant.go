package participant

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/wire"
)

// Participant ties together the control client, the receiver endpoint, the
// local control state machine, and the log sink into the operations the CLI
// drives (spec §4.6, §6.4).
type Participant struct {
	mu sync.Mutex

	id       string
	client   *ControlClient
	sink     *LogSink
	bindHost string
	logger   *zap.Logger

	state    ControlState
	receiver *Receiver
}

// New creates a Participant. bindHost is the local interface to bind the
// receiver endpoint on (empty binds all interfaces); it is reported to the
// coordinator as the receiver's IP on register/reconnect, with 127.0.0.1
// reported in its place when it is empty.
func New(id, bindHost, coordinatorAddr string, sink *LogSink, logger *zap.Logger) *Participant {
	return &Participant{
		id:       id,
		client:   NewControlClient(coordinatorAddr),
		sink:     sink,
		bindHost: bindHost,
		logger:   logger.Named("participant").With(zap.String("participant_id", id)),
		state:    Unregistered,
	}
}

// State returns the participant's current local control state.
func (p *Participant) State() ControlState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Register binds a receiver endpoint on localPort and registers with the
// coordinator. The receiver is bound before the request is sent (spec §4.5)
// and torn down if the coordinator does not ack (spec §4.6).
func (p *Participant) Register(localPort int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.checkRegister(); err != nil {
		return err
	}

	receiver, addr, err := p.bindReceiver(localPort)
	if err != nil {
		return err
	}
	go receiver.Serve()

	req := wire.Request{
		Command:       wire.CommandRegister,
		ParticipantID: p.id,
		IP:            addr.ip,
		Port:          addr.port,
	}
	if err := p.client.Send(req); err != nil {
		receiver.Stop()
		return err
	}

	p.receiver = receiver
	p.state = Registered
	return nil
}

// Deregister tells the coordinator to drop this participant's record and
// tears down the receiver.
func (p *Participant) Deregister() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.checkDeregister(); err != nil {
		return err
	}

	req := wire.Request{Command: wire.CommandDeregister, ParticipantID: p.id}
	if err := p.client.Send(req); err != nil {
		return err
	}

	p.teardownReceiver()
	p.state = Unregistered
	return nil
}

// Disconnect tells the coordinator this participant is going offline and
// tears down the receiver; a later Reconnect binds a fresh one.
func (p *Participant) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.checkDisconnect(); err != nil {
		return err
	}

	req := wire.Request{Command: wire.CommandDisconnect, ParticipantID: p.id}
	if err := p.client.Send(req); err != nil {
		return err
	}

	p.teardownReceiver()
	p.state = Disconnected
	return nil
}

// Reconnect binds a (possibly new) receiver endpoint on localPort and
// reconnects with the coordinator, which replays retained entries
// synchronously on its side (spec §4.2).
func (p *Participant) Reconnect(localPort int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.checkReconnect(); err != nil {
		return err
	}

	p.teardownReceiver()

	receiver, addr, err := p.bindReceiver(localPort)
	if err != nil {
		return err
	}
	go receiver.Serve()

	req := wire.Request{
		Command:       wire.CommandReconnect,
		ParticipantID: p.id,
		IP:            addr.ip,
		Port:          addr.port,
	}
	if err := p.client.Send(req); err != nil {
		receiver.Stop()
		return err
	}

	p.receiver = receiver
	p.state = Registered
	return nil
}

// Msend issues a multicast-send request.
func (p *Participant) Msend(message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.state.checkMsend(); err != nil {
		return err
	}

	req := wire.Request{Command: wire.CommandMulticast, ParticipantID: p.id, Message: message}
	return p.client.Send(req)
}

// Exit implicitly deregisters if currently registered (spec §6.4), then
// tears down any running receiver unconditionally.
func (p *Participant) Exit() {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	if state == Registered {
		if err := p.Deregister(); err != nil {
			p.logger.Warn("deregister on exit failed", zap.Error(err))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownReceiver()
}

type receiverAddr struct {
	ip   string
	port int
}

// bindReceiver binds a new receiver endpoint on localPort and resolves the
// ip/port pair to report to the coordinator. Caller holds p.mu.
func (p *Participant) bindReceiver(localPort int) (*Receiver, receiverAddr, error) {
	bindAddr := net.JoinHostPort(p.bindHost, strconv.Itoa(localPort))
	receiver, port, err := Listen(bindAddr, p.sink, p.logger)
	if err != nil {
		return nil, receiverAddr{}, fmt.Errorf("participant: bind receiver: %w", err)
	}

	ip := p.bindHost
	if ip == "" {
		ip = "127.0.0.1"
	}
	return receiver, receiverAddr{ip: ip, port: port}, nil
}

// teardownReceiver stops and clears the active receiver, if any. Caller
// holds p.mu.
func (p *Participant) teardownReceiver() {
	if p.receiver != nil {
		p.receiver.Stop()
		p.receiver = nil
	}
}
