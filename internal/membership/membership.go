// Package membership implements the coordinator's Membership Table: the
// authoritative registry of participant records and the state machine
// governing each record's online/offline lifecycle (spec §3, §4.1).
//
// Table is a plain data structure with no internal locking of its own. The
// coordinator (internal/coordinator) serializes every call into Table
// (together with the retention log) behind a single mutex, as spec §5
// requires: "every mutation is observed atomically with respect to dispatch
// and replay" across both the Membership Table and the Message Log, not
// within each independently.
package membership

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Status is a participant record's reachability as seen by the coordinator.
type Status int

const (
	// StatusOnline means the record's Address is meaningful and dispatch
	// may target it.
	StatusOnline Status = iota
	// StatusOffline means the record exists but is not currently reachable;
	// it remains eligible for replay on its next reconnect.
	StatusOffline
)

// String renders the status the way a log line or /status response expects.
func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Sentinel errors returned by Table operations. Compare with errors.Is.
var (
	ErrAlreadyRegistered = errors.New("membership: participant already registered")
	ErrNotRegistered     = errors.New("membership: participant not registered")
	ErrNotOnline         = errors.New("membership: participant not online")
	ErrNotOffline        = errors.New("membership: participant not offline")
)

// Record is one participant's entry in the Membership Table (spec §3).
// Values returned to callers (Snapshot, Get) are copies.
type Record struct {
	ID            string
	Address       string
	Status        Status
	LastOfflineAt time.Time // zero value: undefined (never been offline)
}

// Table is the coordinator's Membership Table. Not safe for concurrent use
// on its own — see the package doc. The zero value is not usable; construct
// with New.
type Table struct {
	records map[string]*Record
	order   []string // registration order, for deterministic snapshots
	logger  *zap.Logger
	clock   func() time.Time
}

// New creates an empty Table using the real wall clock.
func New(logger *zap.Logger) *Table {
	return NewWithClock(logger, time.Now)
}

// NewWithClock creates an empty Table using the supplied clock. Tests use
// this to control the instants recorded in LastOfflineAt without relying on
// wall-clock sleeps.
func NewWithClock(logger *zap.Logger, clock func() time.Time) *Table {
	return &Table{
		records: make(map[string]*Record),
		logger:  logger.Named("membership"),
		clock:   clock,
	}
}

// Register creates a fresh Online record for id with no prior offline
// history. Returns ErrAlreadyRegistered if a record for id already exists,
// regardless of its current status (spec §3 transition table: "register
// while record exists → error, reject without state change").
func (t *Table) Register(id, address string) error {
	if _, exists := t.records[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	t.records[id] = &Record{
		ID:      id,
		Address: address,
		Status:  StatusOnline,
	}
	t.order = append(t.order, id)

	t.logger.Info("participant registered",
		zap.String("participant_id", id),
		zap.String("address", address),
	)
	return nil
}

// Deregister removes id's record entirely, regardless of whether it is
// currently Online or Offline (spec §3 allows deregister from either state).
// Retained messages already logged are unaffected; id may register again
// later as a fresh member with no replay history (spec §4.1).
func (t *Table) Deregister(id string) error {
	if _, exists := t.records[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}

	delete(t.records, id)
	t.order = removeID(t.order, id)

	t.logger.Info("participant deregistered", zap.String("participant_id", id))
	return nil
}

// Disconnect transitions id from Online to Offline, stamping LastOfflineAt
// with the current instant. Returns ErrNotOnline if id has no record or is
// already Offline.
func (t *Table) Disconnect(id string) error {
	rec, exists := t.records[id]
	if !exists || rec.Status != StatusOnline {
		return fmt.Errorf("%w: %s", ErrNotOnline, id)
	}

	rec.Status = StatusOffline
	rec.LastOfflineAt = t.clock()

	t.logger.Info("participant disconnected",
		zap.String("participant_id", id),
		zap.Time("last_offline_at", rec.LastOfflineAt),
	)
	return nil
}

// ReconnectResult carries the context the replay engine needs to select
// eligible retained entries.
type ReconnectResult struct {
	// PreviousOfflineAt is the LastOfflineAt value the record held just
	// before this reconnect. The replay cutoff is derived from it.
	PreviousOfflineAt time.Time
}

// Reconnect transitions id from Offline to Online, updates its address, and
// returns the previous LastOfflineAt so the caller can drive replay (spec
// §4.1, §4.2). Returns ErrNotOffline if id has no record or is already
// Online.
func (t *Table) Reconnect(id, address string) (ReconnectResult, error) {
	rec, exists := t.records[id]
	if !exists || rec.Status != StatusOffline {
		return ReconnectResult{}, fmt.Errorf("%w: %s", ErrNotOffline, id)
	}

	prevOfflineAt := rec.LastOfflineAt
	rec.Status = StatusOnline
	rec.Address = address

	t.logger.Info("participant reconnected",
		zap.String("participant_id", id),
		zap.String("address", address),
		zap.Time("previous_offline_at", prevOfflineAt),
	)

	return ReconnectResult{PreviousOfflineAt: prevOfflineAt}, nil
}

// MarkOffline demotes id to Offline with the current instant, as the
// dispatch fabric does on a per-recipient delivery failure (spec §4.4).
// It is idempotent: a no-op if id is unknown or already Offline. Returns
// true iff it performed a transition.
func (t *Table) MarkOffline(id string) bool {
	rec, exists := t.records[id]
	if !exists || rec.Status != StatusOnline {
		return false
	}

	rec.Status = StatusOffline
	rec.LastOfflineAt = t.clock()

	t.logger.Warn("participant demoted to offline after dispatch failure",
		zap.String("participant_id", id),
		zap.Time("last_offline_at", rec.LastOfflineAt),
	)
	return true
}

// OnlineMember is one entry of a dispatch snapshot.
type OnlineMember struct {
	ID      string
	Address string
}

// SnapshotOnline returns every currently Online record's ID and address, in
// registration order. The returned slice is a value copy, safe to use after
// the caller's lock (if any) is released.
func (t *Table) SnapshotOnline() []OnlineMember {
	result := make([]OnlineMember, 0, len(t.records))
	for _, id := range t.order {
		rec := t.records[id]
		if rec.Status == StatusOnline {
			result = append(result, OnlineMember{ID: rec.ID, Address: rec.Address})
		}
	}
	return result
}

// Get returns a copy of id's record and whether it exists. Used by the
// coordinator's msend handler; never returns a pointer into the table.
func (t *Table) Get(id string) (Record, bool) {
	rec, exists := t.records[id]
	if !exists {
		return Record{}, false
	}
	return *rec, true
}

// Snapshot returns a copy of every record currently in the table, in
// registration order.
func (t *Table) Snapshot() []Record {
	result := make([]Record, 0, len(t.records))
	for _, id := range t.order {
		result = append(result, *t.records[id])
	}
	return result
}

// Count returns the number of records currently in the table (online and
// offline combined).
func (t *Table) Count() int {
	return len(t.records)
}

// CountOnline returns the number of currently Online records. Used for
// metrics (multicast_members_online).
func (t *Table) CountOnline() int {
	n := 0
	for _, rec := range t.records {
		if rec.Status == StatusOnline {
			n++
		}
	}
	return n
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
