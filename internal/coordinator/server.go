package coordinator

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/dashboard"
	"github.com/arkeep-io/relaycast/internal/membership"
	"github.com/arkeep-io/relaycast/internal/wire"
)

// Server is the coordinator's control-port front door (spec §4.3): it
// accepts one connection per request, decodes a single framed Request,
// replies with an ack, closes the connection, and only then executes the
// request's side effects (spec §4.3 "the ack is deliberately sent before
// side effects complete").
type Server struct {
	state      *State
	dispatcher *Dispatcher
	metrics    *Metrics
	logger     *zap.Logger
}

// NewServer creates a Server wired to the given State, Dispatcher, and
// Metrics.
func NewServer(state *State, dispatcher *Dispatcher, metrics *Metrics, logger *zap.Logger) *Server {
	return &Server{state: state, dispatcher: dispatcher, metrics: metrics, logger: logger.Named("server")}
}

// ListenAndServe accepts control connections on addr until the listener is
// closed. Each connection is handled in its own goroutine (spec §5
// "multi-threaded accept loop: one worker per inbound control connection").
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("coordinator: listen on %s: %w", addr, err)
	}
	defer lis.Close()

	s.logger.Info("control port listening", zap.String("addr", addr))

	for {
		conn, err := lis.Accept()
		if err != nil {
			return fmt.Errorf("coordinator: accept: %w", err)
		}
		go s.handleConnection(conn)
	}
}

// handleConnection reads exactly one request, acks or drops the connection,
// then runs the request's side effects. Per-connection errors never tear
// down the coordinator (spec §7 propagation policy).
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	connID := uuid.New().String()
	logger := s.logger.With(zap.String("conn_id", connID), zap.String("remote_addr", conn.RemoteAddr().String()))

	var req wire.Request
	if err := wire.ReadFrame(conn, &req); err != nil {
		logger.Warn("malformed request, closing without ack", zap.Error(err))
		return
	}

	if err := validateRequest(req); err != nil {
		logger.Warn("malformed request, closing without ack",
			zap.String("command", string(req.Command)),
			zap.Error(err),
		)
		return
	}

	if err := wire.WriteFrame(conn, wire.Reply{Status: wire.StatusAck}); err != nil {
		logger.Warn("failed to send ack", zap.Error(err))
		return
	}

	// Closing the connection now satisfies spec §4.3's "close the read side
	// of the control connection" before side effects run; the deferred
	// conn.Close() above would otherwise only fire once handleConnection
	// returns, after the side effects below.
	conn.Close()

	s.executeSideEffects(req, logger)
}

// executeSideEffects performs the state mutation (and, for msend/reconnect,
// the network dispatch) implied by an already-acked request. State-illegal
// requests (spec §7) are logged and dropped without mutating state — the
// current contract is that the ack already sent is a receipt, not a success
// indicator (spec §9 "Ack semantics ambiguity"; see DESIGN.md).
func (s *Server) executeSideEffects(req wire.Request, logger *zap.Logger) {
	switch req.Command {
	case wire.CommandRegister:
		addr := net.JoinHostPort(req.IP, strconv.Itoa(req.Port))
		if err := s.state.Register(req.ParticipantID, addr); err != nil {
			s.illegal(logger, req, err)
			return
		}
		s.dispatcher.PublishEvent(dashboard.Event{
			Type:          dashboard.EventParticipantOnline,
			ParticipantID: req.ParticipantID,
			At:            s.dispatcher.Now(),
		})

	case wire.CommandDeregister:
		if err := s.state.Deregister(req.ParticipantID); err != nil {
			s.illegal(logger, req, err)
			return
		}
		s.dispatcher.PublishEvent(dashboard.Event{
			Type:          dashboard.EventParticipantGone,
			ParticipantID: req.ParticipantID,
			At:            s.dispatcher.Now(),
		})

	case wire.CommandDisconnect:
		if err := s.state.Disconnect(req.ParticipantID); err != nil {
			s.illegal(logger, req, err)
			return
		}
		s.dispatcher.PublishEvent(dashboard.Event{
			Type:          dashboard.EventParticipantOffline,
			ParticipantID: req.ParticipantID,
			At:            s.dispatcher.Now(),
		})

	case wire.CommandReconnect:
		addr := net.JoinHostPort(req.IP, strconv.Itoa(req.Port))
		entries, err := s.state.Reconnect(req.ParticipantID, addr)
		if err != nil {
			s.illegal(logger, req, err)
			return
		}
		s.dispatcher.PublishEvent(dashboard.Event{
			Type:          dashboard.EventParticipantOnline,
			ParticipantID: req.ParticipantID,
			At:            s.dispatcher.Now(),
		})
		// Replay runs synchronously, after the ack and after the status
		// flip above (spec §4.2).
		s.dispatcher.Replay(req.ParticipantID, addr, entries)

	case wire.CommandMulticast:
		if _, exists := s.state.Get(req.ParticipantID); !exists {
			s.illegal(logger, req, membership.ErrNotRegistered)
			return
		}
		s.dispatcher.Multicast(req.ParticipantID, req.Message)

	default:
		// Unknown commands are silently ignored after ack (spec §4.3).
		logger.Debug("ignoring unknown command", zap.String("command", string(req.Command)))
	}
}

// illegal logs a state-illegal request (spec §7) and increments the
// corresponding metric. It never mutates state and never fails the
// connection — the ack was already sent.
func (s *Server) illegal(logger *zap.Logger, req wire.Request, err error) {
	if s.metrics != nil {
		s.metrics.IllegalRequests.Inc()
	}
	logger.Info("state-illegal request, no mutation performed",
		zap.String("command", string(req.Command)),
		zap.String("participant_id", req.ParticipantID),
		zap.Error(err),
	)
}

// validateRequest checks that a decoded Request carries every field its
// command requires (spec §6.1). A missing field is a malformed request
// (spec §4.3, §7), distinct from a state-illegal one.
func validateRequest(req wire.Request) error {
	if req.Command == "" {
		return errors.New("missing command")
	}
	if req.ParticipantID == "" {
		return errors.New("missing participant_id")
	}

	switch req.Command {
	case wire.CommandRegister, wire.CommandReconnect:
		if req.IP == "" || req.Port == 0 {
			return errors.New("missing ip or port")
		}
	case wire.CommandMulticast:
		if req.Message == "" {
			return errors.New("missing message")
		}
	case wire.CommandDeregister, wire.CommandDisconnect:
		// participant_id is the only required field.
	default:
		// Unknown commands only need to parse and carry a participant_id;
		// they are ignored after ack (spec §4.3).
	}
	return nil
}
