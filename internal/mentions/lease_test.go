package mentions

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseLatestWins(t *testing.T) {
	leases := NewLeases()
	ctx := context.Background()

	first, releaseFirst, err := leases.Acquire(ctx, "s1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, releaseSecond, err := leases.Acquire(ctx, "s1")
		if assert.NoError(t, err) {
			assert.NoError(t, second.Err())
			close(acquired)
			releaseSecond()
		}
	}()

	// The newer acquire cancels the holder.
	assert.Eventually(t, func() bool { return first.Err() != nil }, time.Second, time.Millisecond)
	assert.ErrorIs(t, context.Cause(first), ErrSuperseded)

	select {
	case <-acquired:
		t.Fatal("second acquired before the first released")
	case <-time.After(20 * time.Millisecond):
	}

	releaseFirst()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second never acquired")
	}

	assert.Eventually(t, func() bool { return leases.Active() == 0 }, time.Second, time.Millisecond)
}

func TestLeaseSupersedesWaiter(t *testing.T) {
	leases := NewLeases()
	ctx := context.Background()

	holder, releaseHolder, err := leases.Acquire(ctx, "s1")
	require.NoError(t, err)

	waiterErr := make(chan error, 1)
	go func() {
		_, release, err := leases.Acquire(ctx, "s1")
		if err == nil {
			release()
		}
		waiterErr <- err
	}()
	assert.Eventually(t, func() bool { return holder.Err() != nil }, time.Second, time.Millisecond)

	latestDone := make(chan struct{})
	go func() {
		_, release, err := leases.Acquire(ctx, "s1")
		assert.NoError(t, err)
		if err == nil {
			release()
		}
		close(latestDone)
	}()

	select {
	case err := <-waiterErr:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("waiter was not superseded")
	}

	releaseHolder()
	select {
	case <-latestDone:
	case <-time.After(time.Second):
		t.Fatal("latest acquirer never ran")
	}
}

func TestLeasesIndependentPerUnit(t *testing.T) {
	leases := NewLeases()
	ctx := context.Background()

	a, releaseA, err := leases.Acquire(ctx, "s1")
	require.NoError(t, err)
	b, releaseB, err := leases.Acquire(ctx, "s2")
	require.NoError(t, err)

	assert.NoError(t, a.Err())
	assert.NoError(t, b.Err())
	assert.Equal(t, 2, leases.Active())

	releaseA()
	releaseA() // idempotent
	releaseB()
	assert.Equal(t, 0, leases.Active())
}

func TestLeaseHonoursCallerCancel(t *testing.T) {
	leases := NewLeases()

	_, release, err := leases.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = leases.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDebouncerCoalesces(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(15*time.Millisecond, func(UnitRef) { calls.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger(sceneRef("s1"))
	}
	d.Trigger(sceneRef("s2"))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncerStop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func(UnitRef) { calls.Add(1) })

	d.Trigger(sceneRef("s1"))
	d.Stop()
	d.Trigger(sceneRef("s2"))

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
