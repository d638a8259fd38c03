package coordinator

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// GCScheduler periodically sweeps expired retained entries from the
// Retained Message Log (SPEC_FULL §11.3). GC is advisory only — ReplayFor
// already filters by cutoff regardless of what the sweep has removed — so a
// missed or delayed tick never affects correctness, only memory footprint.
type GCScheduler struct {
	cron   *cron.Cron
	state  *State
	logger *zap.Logger
}

// NewGCScheduler creates a GCScheduler that sweeps state on the given cron
// spec (e.g. "@every 30s"). Call Start to begin.
func NewGCScheduler(state *State, spec string, logger *zap.Logger) (*GCScheduler, error) {
	c := cron.New()
	g := &GCScheduler{cron: c, state: state, logger: logger.Named("gc")}

	_, err := c.AddFunc(spec, g.sweep)
	if err != nil {
		return nil, fmt.Errorf("coordinator: invalid gc schedule %q: %w", spec, err)
	}

	return g, nil
}

// Start begins running the scheduled sweeps in the background.
func (g *GCScheduler) Start() {
	g.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (g *GCScheduler) Stop() {
	ctx := g.cron.Stop()
	<-ctx.Done()
}

func (g *GCScheduler) sweep() {
	removed := g.state.GC()
	if removed > 0 {
		g.logger.Debug("retention sweep removed expired entries", zap.Int("removed", removed))
	}
}
