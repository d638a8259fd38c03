// Package retention implements the coordinator's Retained Message Log: an
// append-only, time-bounded log of accepted multicasts and the replay
// selection rule applied on reconnect (spec §4.2).
//
// Like membership.Table, Log is a plain data structure with no internal
// locking — the coordinator serializes every call into it (together with
// the Membership Table) behind a single mutex (spec §5).
package retention

import "time"

// Entry is one retained multicast (spec §3 "Retained message entry").
type Entry struct {
	SenderID   string
	Body       string
	AcceptedAt time.Time
}

// Log is an append-only, persistence-window-bounded message log. The zero
// value is not usable; construct with New.
type Log struct {
	window  time.Duration
	entries []Entry
	clock   func() time.Time
}

// New creates an empty Log with the given persistence window, using the
// real wall clock.
func New(window time.Duration) *Log {
	return NewWithClock(window, time.Now)
}

// NewWithClock creates an empty Log using the supplied clock, for
// deterministic tests.
func NewWithClock(window time.Duration, clock func() time.Time) *Log {
	return &Log{window: window, clock: clock}
}

// Append pushes a new entry onto the log, stamped with acceptedAt (supplied
// by the caller — the coordinator's "now" at acceptance time, never the
// sender's clock). Entries are always appended in acceptance order; ties on
// AcceptedAt break by append order, which Append preserves implicitly.
func (l *Log) Append(senderID, body string, acceptedAt time.Time) Entry {
	e := Entry{SenderID: senderID, Body: body, AcceptedAt: acceptedAt}
	l.entries = append(l.entries, e)
	return e
}

// ReplayFor returns every retained entry eligible for delivery to a
// participant reconnecting at instant now, given the previous
// last_offline_at recorded for that participant (spec §4.2).
//
// The eligibility cutoff is the LATER of disconnectedAt and (now - window):
// a reconnecting participant must not re-receive anything it already saw
// before going offline, and must not receive anything older than the
// persistence window promises. When disconnectedAt is the zero Time (no
// prior offline transition — spec's "undefined" case), no replay is
// performed: ReplayFor returns nil.
//
// Entries with AcceptedAt exactly equal to the cutoff are included (closed
// lower bound). The returned slice preserves acceptance order; no
// reordering is ever performed.
func (l *Log) ReplayFor(disconnectedAt, now time.Time) []Entry {
	if disconnectedAt.IsZero() {
		return nil
	}

	windowCutoff := now.Add(-l.window)
	cutoff := disconnectedAt
	if windowCutoff.After(cutoff) {
		cutoff = windowCutoff
	}

	var result []Entry
	for _, e := range l.entries {
		if !e.AcceptedAt.Before(cutoff) {
			result = append(result, e)
		}
	}
	return result
}

// GC removes every entry older than the persistence window as of now.
// Garbage collection is advisory only: ReplayFor already filters by cutoff
// regardless of what GC has removed, so GC affects memory, never
// correctness (spec §3 "Retention invariant"). Returns the number of
// entries removed.
func (l *Log) GC(now time.Time) int {
	cutoff := now.Add(-l.window)
	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if e.AcceptedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed
}

// Len returns the current number of retained entries. Used for metrics
// (multicast_retained_entries).
func (l *Log) Len() int {
	return len(l.entries)
}
