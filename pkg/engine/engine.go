// Package engine implements the stale-while-revalidate core: the request
// path that serves cached rates or coalesces concurrent misses into one
// upstream call, the cross-replica key registry, and the batch refresh the
// revalidator drives.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/hotelops/rate-proxy/pkg/kv"
	"github.com/hotelops/rate-proxy/pkg/lock"
	"github.com/hotelops/rate-proxy/pkg/quota"
	"github.com/hotelops/rate-proxy/pkg/rates"
	"github.com/hotelops/rate-proxy/pkg/upstream"
	"github.com/rs/zerolog"
)

// RegistryKey is the Redis set holding every cache key ever populated. The
// revalidator reads it to know what to refresh; membership only grows
// within a deployment's lifetime and is bounded by the tuple domain.
const RegistryKey = "rate_cache_keys"

// Config holds the engine timing parameters, immutable after start.
type Config struct {
	// CacheTTL bounds the age of any served rate.
	CacheTTL time.Duration

	// LockTTL bounds how long a crashed miss-holder can block a key. Must
	// exceed the worst-case upstream latency.
	LockTTL time.Duration

	// LockRetries is the number of additional acquisition attempts after
	// the first.
	LockRetries int

	// LockRetryDelay is the sleep between acquisition attempts.
	LockRetryDelay time.Duration
}

// DefaultConfig returns the default timing parameters. With the default
// two-minute refresh cadence these keep daily upstream calls at
// 720 + |domain| = 756, under the 1,000/day token quota.
func DefaultConfig() Config {
	return Config{
		CacheTTL:       5 * time.Minute,
		LockTTL:        30 * time.Second,
		LockRetries:    2,
		LockRetryDelay: 150 * time.Millisecond,
	}
}

// Engine is the rate cache engine.
type Engine struct {
	store    *kv.Store
	locker   *lock.Locker
	upstream *upstream.Client
	quota    *quota.Accountant
	cfg      Config
	logger   zerolog.Logger
}

// New creates an Engine. All collaborators are required.
func New(store *kv.Store, locker *lock.Locker, up *upstream.Client, accountant *quota.Accountant, cfg Config, logger zerolog.Logger) *Engine {
	if store == nil || locker == nil || up == nil || accountant == nil {
		panic("engine: all collaborators are required")
	}
	if cfg.CacheTTL <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		store:    store,
		locker:   locker,
		upstream: up,
		quota:    accountant,
		cfg:      cfg,
		logger:   logger,
	}
}

// GetRate returns a rate no older than the cache TTL for the validated
// tuple, or an UnavailableError when freshness cannot be guaranteed.
//
// The fast path is a single read with no locking. On a miss, concurrent
// callers for the same key serialize on the distributed lock; exactly one
// fetches from the upstream and the rest pick up its write via the
// double-check.
func (e *Engine) GetRate(ctx context.Context, t rates.Tuple) (string, error) {
	key := t.Key()

	if value, err := e.store.Get(ctx, key); err == nil {
		cacheHits.Inc()
		rate, decodeErr := e.decode(value)
		if decodeErr != nil {
			unavailableTotal.WithLabelValues(ReasonNoRate).Inc()
		}
		return rate, decodeErr
	} else if !errors.Is(err, kv.ErrNotFound) {
		// A flaky cache plane degrades to a miss, never to an error.
		e.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
	}
	cacheMisses.Inc()

	// Advisory gate: skip lock traffic entirely when the fleet has burned
	// the day's budget. The authoritative check happens inside the lock.
	if ok, err := e.quota.HasRemaining(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Quota pre-check failed")
	} else if !ok {
		unavailableTotal.WithLabelValues(ReasonNoQuota).Inc()
		return "", &UnavailableError{Reason: ReasonNoQuota}
	}

	var rate string
	err := e.locker.WithLock(ctx, key, e.cfg.LockTTL, e.cfg.LockRetries, e.cfg.LockRetryDelay, func(ctx context.Context) error {
		// Double-check: another replica may have filled the key while we
		// waited on the lock.
		if value, err := e.store.Get(ctx, key); err == nil {
			coalescedHits.Inc()
			var decodeErr error
			rate, decodeErr = e.decode(value)
			return decodeErr
		}

		if ok, err := e.quota.HasRemaining(ctx); err != nil || !ok {
			if err != nil {
				e.logger.Error().Err(err).Msg("Quota check failed inside lock")
			}
			return &UnavailableError{Reason: ReasonNoQuota}
		}

		fetched, found := e.upstream.FetchSingle(ctx, t)
		if found {
			if err := e.quota.Increment(ctx); err != nil {
				e.logger.Error().Err(err).Msg("Quota increment failed")
			}
		}

		// An empty result is cached too: it dampens repeated upstream
		// hits on tuples the oracle genuinely does not price.
		if err := e.store.SetWithTTL(ctx, key, e.cfg.CacheTTL, fetched); err != nil {
			e.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		} else if err := e.store.SAdd(ctx, RegistryKey, key); err != nil {
			e.logger.Warn().Err(err).Str("key", key).Msg("Registry insert failed")
		}

		if !found {
			return &UnavailableError{Reason: ReasonNoRate}
		}
		rate = fetched
		return nil
	})

	if errors.Is(err, lock.ErrNotAcquired) {
		unavailableTotal.WithLabelValues(ReasonLockUnavailable).Inc()
		return "", &UnavailableError{Reason: ReasonLockUnavailable}
	}
	if err != nil {
		if IsUnavailable(err) {
			var unavailable *UnavailableError
			errors.As(err, &unavailable)
			unavailableTotal.WithLabelValues(unavailable.Reason).Inc()
		}
		return "", err
	}
	return rate, nil
}

// RefreshResult tallies one revalidation pass.
type RefreshResult struct {
	Updated int
	Errors  int
}

// RefreshAll re-fetches every registered key in a single upstream batch and
// rewrites the cache entries with a full TTL. An empty registry costs
// nothing; a failed batch leaves existing entries untouched so they keep
// serving until TTL expiry or the next successful pass.
func (e *Engine) RefreshAll(ctx context.Context) RefreshResult {
	start := time.Now()

	keys, err := e.store.SMembers(ctx, RegistryKey)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Registry read failed, skipping refresh")
		return RefreshResult{}
	}
	if len(keys) == 0 {
		return RefreshResult{}
	}

	var result RefreshResult
	tuples := make([]rates.Tuple, 0, len(keys))
	validKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		t, err := rates.ParseKey(key)
		if err != nil {
			e.logger.Error().Err(err).Str("key", key).Msg("Malformed registry member")
			result.Errors++
			continue
		}
		tuples = append(tuples, t)
		validKeys = append(validKeys, key)
	}
	if len(tuples) == 0 {
		return result
	}

	fetched := e.upstream.FetchBatch(ctx, tuples)
	if len(fetched) == 0 {
		result.Errors += len(tuples)
		refreshErrors.Add(float64(len(tuples)))
		e.logger.Warn().
			Int("keys", len(tuples)).
			Msg("Refresh batch returned nothing, keeping existing entries")
		return result
	}

	// One batch, one quota unit.
	if err := e.quota.Increment(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Quota increment failed")
	}

	for i, t := range tuples {
		rate, ok := fetched.Lookup(t.Period, t.Hotel, t.Room)
		if !ok {
			// Left untouched; the entry expires naturally.
			result.Errors++
			continue
		}
		if err := e.store.SetWithTTL(ctx, validKeys[i], e.cfg.CacheTTL, rate); err != nil {
			e.logger.Warn().Err(err).Str("key", validKeys[i]).Msg("Refresh write failed")
			result.Errors++
			continue
		}
		result.Updated++
	}

	refreshUpdated.Add(float64(result.Updated))
	refreshErrors.Add(float64(result.Errors))
	e.logger.Info().
		Int("updated", result.Updated).
		Int("errors", result.Errors).
		Dur("duration", time.Since(start)).
		Msg("Refresh pass complete")

	return result
}

// decode turns a stored value back into a rate. The empty string is the
// cached form of "upstream knows no rate for this tuple".
func (e *Engine) decode(value string) (string, error) {
	if value == "" {
		return "", &UnavailableError{Reason: ReasonNoRate}
	}
	return value, nil
}
