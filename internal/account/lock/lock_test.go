package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireMutualExclusion(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	release, err := k.Acquire(ctx, "a")
	require.NoError(t, err)

	blocked := make(chan struct{})
	go func() {
		r2, err := k.Acquire(ctx, "a")
		assert.NoError(t, err)
		close(blocked)
		r2()
	}()

	select {
	case <-blocked:
		t.Fatal("second acquire succeeded while lock held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestAcquireTimesOut(t *testing.T) {
	k := NewKeyed()

	release, err := k.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = k.Acquire(ctx, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseIsIdempotent(t *testing.T) {
	k := NewKeyed()

	release, err := k.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()
	release()

	// Key must be reacquirable after the double release.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := k.Acquire(ctx, "a")
	require.NoError(t, err)
	r2()
}

func TestAcquireOrderedDeduplicates(t *testing.T) {
	k := NewKeyed()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Same key twice must not self-deadlock.
	release, err := k.AcquireOrdered(ctx, "a", "a")
	require.NoError(t, err)
	release()
}

func TestAcquireOrderedReleasesOnFailure(t *testing.T) {
	k := NewKeyed()

	holdB, err := k.Acquire(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err = k.AcquireOrdered(ctx, "a", "b")
	cancel()
	require.Error(t, err)

	// "a" must have been released when "b" failed.
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	releaseA, err := k.Acquire(ctx2, "a")
	require.NoError(t, err)
	releaseA()
	holdB()
}

// Opposing lock orders are the classic transfer deadlock. AcquireOrdered
// sorts keys, so heavy contention in both directions must always drain.
func TestAcquireOrderedOpposingPairsNoDeadlock(t *testing.T) {
	k := NewKeyed()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(2)

	worker := func(first, second string) {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			release, err := k.AcquireOrdered(ctx, first, second)
			if !assert.NoError(t, err) {
				return
			}
			release()
		}
	}
	go worker("a", "b")
	go worker("b", "a")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposing acquisitions deadlocked")
	}
}
