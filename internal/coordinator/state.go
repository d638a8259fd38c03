// Package coordinator implements the coordinator process's core: the single
// locked state combining the Membership Table and Retained Message Log
// (spec §5), the request dispatcher (spec §4.3), and the multicast dispatch
// fabric (spec §4.4).
package coordinator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/membership"
	"github.com/arkeep-io/relaycast/internal/retention"
)

// State is the coordinator's single source of truth: the Membership Table
// and the Retained Message Log, serialized behind one mutex (spec §5 "all
// observers see state transitions in a single total order"). Every exported
// method here is one atomic step; outbound network I/O never happens while
// the lock is held — Reconnect and AcceptMulticast return plain data
// (snapshots, replay sets) for the caller to act on after the lock is
// released.
type State struct {
	mu     sync.Mutex
	table  *membership.Table
	log    *retention.Log
	clock  func() time.Time
	logger *zap.Logger
}

// NewState creates a State with the given persistence window, using the
// real wall clock.
func NewState(window time.Duration, logger *zap.Logger) *State {
	return NewStateWithClock(window, time.Now, logger)
}

// NewStateWithClock creates a State using the supplied clock, for
// deterministic tests.
func NewStateWithClock(window time.Duration, clock func() time.Time, logger *zap.Logger) *State {
	return &State{
		table:  membership.NewWithClock(logger, clock),
		log:    retention.NewWithClock(window, clock),
		clock:  clock,
		logger: logger.Named("state"),
	}
}

// Register registers a new participant (spec §4.1).
func (s *State) Register(id, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Register(id, address)
}

// Deregister removes a participant's record (spec §4.1). Past retained
// messages are unaffected.
func (s *State) Deregister(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Deregister(id)
}

// Disconnect transitions a participant to Offline (spec §4.1).
func (s *State) Disconnect(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Disconnect(id)
}

// Reconnect transitions a participant to Online, updates its address, and
// atomically computes the set of retained entries it must replay (spec
// §4.1, §4.2). The returned entries are a value copy — safe to deliver
// after the lock is released.
func (s *State) Reconnect(id, address string) ([]retention.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.table.Reconnect(id, address)
	if err != nil {
		return nil, err
	}

	replay := s.log.ReplayFor(result.PreviousOfflineAt, s.clock())
	return replay, nil
}

// AcceptMulticast appends body to the retained log under sender senderID
// and atomically captures the snapshot of currently Online recipients (spec
// §4.4 steps 1–3). The caller dispatches to the returned recipients outside
// the lock.
func (s *State) AcceptMulticast(senderID, body string) (retention.Entry, []membership.OnlineMember) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.log.Append(senderID, body, s.clock())
	recipients := s.table.SnapshotOnline()
	return entry, recipients
}

// MarkOffline demotes a participant to Offline after a dispatch failure
// (spec §4.4). Idempotent; returns true iff it performed a transition.
func (s *State) MarkOffline(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.MarkOffline(id)
}

// GC removes retained entries older than the persistence window. Advisory
// only — see retention.Log.GC.
func (s *State) GC() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.GC(s.clock())
}

// Snapshot returns a copy of every membership record, for the /status
// endpoint.
func (s *State) Snapshot() []membership.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Snapshot()
}

// Get returns a copy of one participant's record.
func (s *State) Get(id string) (membership.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Get(id)
}

// CountOnline returns the number of currently Online participants, for
// metrics.
func (s *State) CountOnline() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.CountOnline()
}

// RetainedCount returns the number of retained log entries, for metrics.
func (s *State) RetainedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Len()
}
