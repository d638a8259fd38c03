package coordinator

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arkeep-io/relaycast/internal/dashboard"
)

// NewRouter builds the coordinator's HTTP status/metrics/dashboard surface
// (SPEC_FULL §11.1), separate from the TCP control port. It is purely
// observational: nothing reachable through it mutates the Membership Table
// or the Retained Message Log.
func NewRouter(state *State, metrics *Metrics, hub *dashboard.Hub, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, state)
	})

	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	if hub != nil {
		r.Get("/ws/observe", func(w http.ResponseWriter, r *http.Request) {
			client, err := dashboard.NewClient(hub, w, r, logger)
			if err != nil {
				logger.Warn("dashboard upgrade failed", zap.Error(err))
				return
			}
			client.Run()
		})
	}

	return r
}

// statusParticipant is the JSON shape of one row in the /status response.
type statusParticipant struct {
	ID            string `json:"id"`
	Address       string `json:"address"`
	Status        string `json:"status"`
	LastOfflineAt string `json:"last_offline_at,omitempty"`
}

type statusResponse struct {
	Participants    []statusParticipant `json:"participants"`
	RetainedEntries int                  `json:"retained_entries"`
}

func writeStatus(w http.ResponseWriter, state *State) {
	records := state.Snapshot()

	resp := statusResponse{
		Participants:    make([]statusParticipant, 0, len(records)),
		RetainedEntries: state.RetainedCount(),
	}
	for _, rec := range records {
		p := statusParticipant{
			ID:      rec.ID,
			Address: rec.Address,
			Status:  rec.Status.String(),
		}
		if !rec.LastOfflineAt.IsZero() {
			p.LastOfflineAt = rec.LastOfflineAt.Format("2006-01-02T15:04:05Z07:00")
		}
		resp.Participants = append(resp.Participants, p)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
