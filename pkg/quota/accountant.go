// Package quota accounts for upstream pricing calls against the daily API
// token quota. The counter lives in Redis so every proxy replica draws from
// the same budget.
//
// The counter is monotonic and never reset here; an external operator job
// windows it daily. By policy it is incremented only after a successful
// upstream call that returned a non-empty result, which under-counts wire
// calls by the (rare) empty-response rate.
package quota

import (
	"context"

	"github.com/hotelops/rate-proxy/pkg/kv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// CounterKey is the Redis key holding the shared call counter.
const CounterKey = "rate_api:calls"

var callsUsed = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "rate_proxy_api_calls_used",
	Help: "Upstream pricing calls consumed in the current quota window",
})

// Accountant tracks upstream call consumption against a fixed ceiling.
type Accountant struct {
	store  *kv.Store
	limit  int64
	logger zerolog.Logger
}

// New creates an Accountant with the configured quota ceiling.
func New(store *kv.Store, limit int64, logger zerolog.Logger) *Accountant {
	return &Accountant{store: store, limit: limit, logger: logger}
}

// Limit returns the configured quota ceiling.
func (a *Accountant) Limit() int64 {
	return a.limit
}

// Increment records one upstream call.
func (a *Accountant) Increment(ctx context.Context) error {
	n, err := a.store.Incr(ctx, CounterKey)
	if err != nil {
		return err
	}
	callsUsed.Set(float64(n))
	if remaining := a.limit - n; remaining <= a.limit/10 {
		a.logger.Warn().
			Int64("used", n).
			Int64("remaining", remaining).
			Msg("Upstream quota running low")
	}
	return nil
}

// Count reads the calls consumed so far. A missing counter reads as 0.
func (a *Accountant) Count(ctx context.Context) (int64, error) {
	return a.store.GetCounter(ctx, CounterKey)
}

// Remaining returns the calls left in the quota window. It can go negative
// if the counter was driven past the ceiling elsewhere.
func (a *Accountant) Remaining(ctx context.Context) (int64, error) {
	n, err := a.Count(ctx)
	if err != nil {
		return 0, err
	}
	return a.limit - n, nil
}

// HasRemaining reports whether at least one upstream call is still budgeted.
func (a *Accountant) HasRemaining(ctx context.Context) (bool, error) {
	remaining, err := a.Remaining(ctx)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}
