// Package lock implements per-key mutual exclusion across all proxy replicas
// on top of the shared Redis store.
//
// Acquisition is a single SET NX PX carrying a per-acquire unique token;
// release is a server-side compare-and-delete so a holder never releases a
// lock it no longer owns. This is bounded-waiting mutual exclusion, not a
// consensus primitive: a crashed holder frees the lock at TTL expiry, and
// the single-holder invariant assumes clock skew well under the TTL.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hotelops/rate-proxy/pkg/kv"
	"github.com/rs/zerolog"
)

// ErrNotAcquired indicates every acquisition attempt found the lock held.
var ErrNotAcquired = errors.New("lock: not acquired")

const keyPrefix = "lock:"

// Locker acquires and releases fleet-wide locks through the KV store.
type Locker struct {
	store  *kv.Store
	logger zerolog.Logger
}

// New creates a Locker backed by the given store.
func New(store *kv.Store, logger zerolog.Logger) *Locker {
	return &Locker{store: store, logger: logger}
}

// Acquire attempts to take the lock for resource, retrying up to retries
// additional times with retryDelay between attempts. It returns the unique
// token on success and ErrNotAcquired once attempts are exhausted.
//
// The inter-attempt sleep is capped by the lock TTL minus elapsed time (a
// sleep longer than that could outlive the holder's TTL and the whole
// point of retrying) and is context-aware.
func (l *Locker) Acquire(ctx context.Context, resource string, ttl time.Duration, retries int, retryDelay time.Duration) (string, error) {
	key := keyPrefix + resource
	token := newToken()
	start := time.Now()

	for attempt := 0; ; attempt++ {
		acquired, err := l.store.SetIfAbsentWithTTL(ctx, key, token, ttl)
		if err != nil {
			return "", err
		}
		if acquired {
			return token, nil
		}

		if attempt >= retries {
			l.logger.Debug().
				Str("resource", resource).
				Int("attempts", attempt+1).
				Msg("Lock acquisition exhausted")
			return "", ErrNotAcquired
		}

		sleep := retryDelay
		if budget := ttl - time.Since(start); budget < sleep {
			sleep = budget
		}
		if sleep < 0 {
			sleep = 0
		}
		if sleep > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("lock: acquire cancelled: %w", ctx.Err())
			case <-time.After(sleep):
			}
		}
	}
}

// Release frees the lock for resource iff it still holds token. Returns
// true when the lock entry was deleted, false when it had already expired
// or was taken over by another holder.
func (l *Locker) Release(ctx context.Context, resource, token string) (bool, error) {
	released, err := l.store.CompareAndDelete(ctx, keyPrefix+resource, token)
	if err != nil {
		return false, err
	}
	if !released {
		l.logger.Warn().
			Str("resource", resource).
			Msg("Lock already expired or owned elsewhere on release")
	}
	return released, nil
}

// WithLock runs fn while holding the lock for resource. The lock is
// released on every exit path, including fn returning an error or
// panicking; fn's error is returned unmodified. If the lock cannot be
// acquired, fn does not run and WithLock returns ErrNotAcquired.
func (l *Locker) WithLock(ctx context.Context, resource string, ttl time.Duration, retries int, retryDelay time.Duration, fn func(ctx context.Context) error) error {
	token, err := l.Acquire(ctx, resource, ttl, retries, retryDelay)
	if err != nil {
		return err
	}
	defer func() {
		// Release must not inherit a cancelled request context: an
		// aborted handler still has to free the lock.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ttl)
		defer cancel()
		if _, err := l.Release(releaseCtx, resource, token); err != nil {
			l.logger.Warn().Err(err).Str("resource", resource).Msg("Lock release failed")
		}
	}()

	return fn(ctx)
}

// newToken generates a per-acquire token. Two concurrent acquirers anywhere
// in the fleet produce distinct tokens with overwhelming probability.
func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
