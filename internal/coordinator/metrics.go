package coordinator

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors exposed on /metrics (SPEC_FULL
// §11.1). Registered against a dedicated registry rather than the global
// default so tests can construct multiple coordinators in the same process
// without collector-already-registered panics.
type Metrics struct {
	Registry *prometheus.Registry

	MembersOnline    prometheus.GaugeFunc
	RetainedEntries  prometheus.GaugeFunc
	DispatchAttempts prometheus.Counter
	DispatchFailures prometheus.Counter
	ReplayMessages   prometheus.Counter
	IllegalRequests  prometheus.Counter
}

// NewMetrics builds and registers the coordinator's metrics collectors. The
// gauge functions read live values from state on every scrape, so there is
// no separate bookkeeping to keep in sync with the Membership Table and
// Retained Message Log.
func NewMetrics(state *State) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		MembersOnline: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "multicast_members_online",
			Help: "Number of participants currently online.",
		}, func() float64 { return float64(state.CountOnline()) }),
		RetainedEntries: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "multicast_retained_entries",
			Help: "Number of retained messages currently in the log.",
		}, func() float64 { return float64(state.RetainedCount()) }),
		DispatchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multicast_dispatch_attempts_total",
			Help: "Total per-recipient delivery attempts.",
		}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multicast_dispatch_failures_total",
			Help: "Total per-recipient delivery failures.",
		}),
		ReplayMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multicast_replay_messages_total",
			Help: "Total retained messages replayed to reconnecting participants.",
		}),
		IllegalRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "multicast_illegal_requests_total",
			Help: "Total well-formed requests rejected as state-illegal.",
		}),
	}

	reg.MustRegister(
		m.MembersOnline,
		m.RetainedEntries,
		m.DispatchAttempts,
		m.DispatchFailures,
		m.ReplayMessages,
		m.IllegalRequests,
	)

	return m
}
