package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hotelops/rate-proxy/pkg/kv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := kv.NewFromURL("redis://" + mr.Addr())
	require.NoError(t, err)
	return New(store, zerolog.Nop()), mr
}

func TestNewToken_Unique(t *testing.T) {
	t1 := newToken()
	t2 := newToken()
	assert.Len(t, t1, 32)
	assert.NotEqual(t, t1, t2)
}

func TestLocker_AcquireRelease(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "res", 30*time.Second, 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	held, err := mr.Get("lock:res")
	require.NoError(t, err)
	assert.Equal(t, token, held)

	released, err := locker.Release(ctx, "res", token)
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists("lock:res"))
}

func TestLocker_AcquireHeld(t *testing.T) {
	locker, _ := setupLocker(t)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "res", 30*time.Second, 0, 0)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "res", 30*time.Second, 2, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestLocker_AcquireAfterExpiry(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "res", time.Second, 0, 0)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	token, err := locker.Acquire(ctx, "res", time.Second, 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestLocker_AcquireRetriesUntilFree(t *testing.T) {
	locker, _ := setupLocker(t)
	ctx := context.Background()

	holder, err := locker.Acquire(ctx, "res", 30*time.Second, 0, 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = locker.Release(context.Background(), "res", holder)
	}()

	token, err := locker.Acquire(ctx, "res", 30*time.Second, 5, 50*time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestLocker_ReleaseWrongToken(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "res", 30*time.Second, 0, 0)
	require.NoError(t, err)

	released, err := locker.Release(ctx, "res", "not-the-token")
	require.NoError(t, err)
	assert.False(t, released)

	// The holder's entry is untouched.
	held, err := mr.Get("lock:res")
	require.NoError(t, err)
	assert.Equal(t, token, held)
}

func TestLocker_AcquireCancelled(t *testing.T) {
	locker, _ := setupLocker(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := locker.Acquire(ctx, "res", 30*time.Second, 0, 0)
	require.NoError(t, err)

	cancel()
	_, err = locker.Acquire(ctx, "res", 30*time.Second, 3, 50*time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}

func TestLocker_WithLock(t *testing.T) {
	locker, mr := setupLocker(t)

	ran := false
	err := locker.WithLock(context.Background(), "res", 30*time.Second, 0, 0, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:res"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:res"))
}

func TestLocker_WithLock_NotAcquired(t *testing.T) {
	locker, _ := setupLocker(t)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "res", 30*time.Second, 0, 0)
	require.NoError(t, err)

	ran := false
	err = locker.WithLock(ctx, "res", 30*time.Second, 0, 0, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.False(t, ran)
}

func TestLocker_WithLock_BodyError(t *testing.T) {
	locker, mr := setupLocker(t)

	bodyErr := errors.New("body failed")
	err := locker.WithLock(context.Background(), "res", 30*time.Second, 0, 0, func(ctx context.Context) error {
		return bodyErr
	})
	assert.ErrorIs(t, err, bodyErr)
	assert.False(t, mr.Exists("lock:res"), "lock must be released when the body errors")
}

func TestLocker_WithLock_BodyPanic(t *testing.T) {
	locker, mr := setupLocker(t)

	assert.Panics(t, func() {
		_ = locker.WithLock(context.Background(), "res", 30*time.Second, 0, 0, func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.False(t, mr.Exists("lock:res"), "lock must be released when the body panics")
}

func TestLocker_WithLock_ReleasedAfterCancel(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := locker.WithLock(ctx, "res", 30*time.Second, 0, 0, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.False(t, mr.Exists("lock:res"), "lock must be released even with a cancelled request context")
}
