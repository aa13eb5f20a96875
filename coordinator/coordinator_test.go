package coordinator_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habiliai/docstore/coordinator"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/internal/mylog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAcquireSerializesPerKey(t *testing.T) {
	c := coordinator.New(5*time.Second, mylog.Discard())

	var inside, maxInside atomic.Int32
	g, ctx := errgroup.WithContext(t.Context())
	for range 16 {
		g.Go(func() error {
			_, release, err := c.Acquire(ctx, "/srv/docs")
			if err != nil {
				return err
			}
			defer release()

			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestAcquireTimeout(t *testing.T) {
	c := coordinator.New(20*time.Millisecond, mylog.Discard())

	_, release, err := c.Acquire(t.Context(), "b")
	require.NoError(t, err)
	defer release()

	_, other, err := c.Acquire(t.Context(), "b", "a")
	assert.ErrorIs(t, err, errors.ErrLockTimeout)
	other()

	_, releaseA, err := c.Acquire(t.Context(), "a")
	require.NoError(t, err, "a failed acquisition must not keep a")
	releaseA()
}

func TestAcquireCanceled(t *testing.T) {
	c := coordinator.New(time.Minute, mylog.Discard())

	_, release, err := c.Acquire(t.Context(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, _, err = c.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, errors.ErrLockTimeout)
}

func TestAcquireIsReentrantThroughContext(t *testing.T) {
	c := coordinator.New(20*time.Millisecond, mylog.Discard())

	ctx, release, err := c.Acquire(t.Context(), "/srv/b", "/srv/a", "/srv/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/a", "/srv/b"}, coordinator.HeldKeys(ctx))

	inner, releaseInner, err := c.Acquire(ctx, "/srv/a")
	require.NoError(t, err)
	releaseInner()
	assert.Equal(t, coordinator.HeldKeys(ctx), coordinator.HeldKeys(inner))

	release()
	release()

	_, again, err := c.Acquire(t.Context(), "/srv/a", "/srv/b")
	require.NoError(t, err)
	again()
}

func TestNestedAcquireKeepsKeyOrder(t *testing.T) {
	c := coordinator.New(time.Second, mylog.Discard())

	ctx, release, err := c.Acquire(t.Context(), "/srv/b")
	require.NoError(t, err)
	defer release()

	_, _, err = c.Acquire(ctx, "/srv/a")
	assert.ErrorContains(t, err, "sorts before held lock /srv/b")
	_, _, err = c.Acquire(ctx, "/srv/b", "/srv/a")
	assert.Error(t, err)

	// the rejected keys were never taken
	_, releaseA, err := c.Acquire(t.Context(), "/srv/a")
	require.NoError(t, err)
	releaseA()

	inner, releaseC, err := c.Acquire(ctx, "/srv/c")
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/b", "/srv/c"}, coordinator.HeldKeys(inner))
	releaseC()
}

func TestOppositeOrderDoesNotDeadlock(t *testing.T) {
	c := coordinator.New(5*time.Second, mylog.Discard())

	g, ctx := errgroup.WithContext(t.Context())
	for i := range 50 {
		keys := []string{"x", "y"}
		if i%2 == 1 {
			keys = []string{"y", "x"}
		}
		g.Go(func() error {
			_, release, err := c.Acquire(ctx, keys...)
			if err != nil {
				return err
			}
			release()
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
