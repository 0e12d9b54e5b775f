// Package revalidator drives the engine's batch refresh on a fixed cadence.
//
// One Runner per process, one logical revalidator per deployment: every
// replica running the loop issues its own daily batch budget, so request
// replicas should start with the loop disabled and a single worker replica
// should own it.
package revalidator

import (
	"context"
	"time"

	"github.com/hotelops/rate-proxy/pkg/engine"
	"github.com/rs/zerolog"
)

// DefaultInterval is the refresh cadence. Together with the upstream
// latency budget it must stay under the cache TTL so entries are rewritten
// before they expire.
const DefaultInterval = 2 * time.Minute

// Runner is the long-lived refresh loop.
type Runner struct {
	engine   *engine.Engine
	interval time.Duration
	logger   zerolog.Logger
}

// New creates a Runner with the given cadence.
func New(e *engine.Engine, interval time.Duration, logger zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{engine: e, interval: interval, logger: logger}
}

// Run refreshes every registered key, sleeps one interval, and repeats
// until ctx is cancelled. Nothing inside a pass terminates the loop; the
// only exit is shutdown.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("Revalidator started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.refresh(ctx)

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Revalidator stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) refresh(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("Refresh pass panicked")
		}
	}()

	result := r.engine.RefreshAll(ctx)
	if result.Errors > 0 {
		r.logger.Warn().
			Int("updated", result.Updated).
			Int("errors", result.Errors).
			Msg("Refresh pass had errors")
	}
}
