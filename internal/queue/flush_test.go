package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aridsondez/SHARE-RELAY/internal/queue/store/memory"
)

func failingSubmit(ctx context.Context, it Item) error {
	return errors.New("upstream unreachable")
}

func succeedingSubmit(ctx context.Context, it Item) error {
	return nil
}

func TestFlushRetryCycle(t *testing.T) {
	mgr, _, clock := newTestManager(t)
	f := NewFlusher(mgr, time.Second)
	ctx := context.Background()

	mgr.Enqueue(ctx, "X", Payload{URL: "X"})

	// First pass fails: one attempt recorded, item stays.
	res := f.Flush(ctx, failingSubmit)
	assert.Equal(t, Result{Succeeded: 0, Failed: 1}, res)
	pending := mgr.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	// Immediate second pass at the same instant: nothing is ready.
	res = f.Flush(ctx, failingSubmit)
	assert.Equal(t, Result{Succeeded: 0, Failed: 0}, res)

	// After one backoff interval the item is ready and delivery succeeds.
	clock.Advance(DefaultBackoffBase)
	res = f.Flush(ctx, succeedingSubmit)
	assert.Equal(t, Result{Succeeded: 1, Failed: 0}, res)
	assert.Empty(t, mgr.Pending(ctx))
}

func TestFlushNeverAttemptsSameItemTwice(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	f := NewFlusher(mgr, time.Second)
	ctx := context.Background()

	mgr.Enqueue(ctx, "a", Payload{URL: "a"})
	mgr.Enqueue(ctx, "b", Payload{URL: "b"})
	mgr.Enqueue(ctx, "c", Payload{URL: "c"})

	var mu sync.Mutex
	attempts := map[string]int{}
	res := f.Flush(ctx, func(ctx context.Context, it Item) error {
		mu.Lock()
		attempts[it.ID]++
		mu.Unlock()
		return errors.New("nope")
	})

	assert.Equal(t, Result{Succeeded: 0, Failed: 3}, res)
	for id, n := range attempts {
		assert.Equal(t, 1, n, "item %s attempted more than once in one pass", id)
	}
}

func TestFlushSweepsExpiredBeforeAttempting(t *testing.T) {
	mgr, _, clock := newTestManager(t)
	f := NewFlusher(mgr, time.Second)
	ctx := context.Background()

	mgr.Enqueue(ctx, "stale", Payload{URL: "stale"})
	clock.Advance(8 * 24 * time.Hour)

	calls := 0
	res := f.Flush(ctx, func(ctx context.Context, it Item) error {
		calls++
		return nil
	})

	assert.Equal(t, Result{Succeeded: 0, Failed: 0}, res)
	assert.Equal(t, 0, calls, "expired item must be swept, not attempted")
	assert.Empty(t, mgr.Pending(ctx))
}

func TestFlushExhaustedItemIsInert(t *testing.T) {
	mgr, _, clock := newTestManager(t)
	f := NewFlusher(mgr, time.Second)
	ctx := context.Background()
	policy := mgr.Policy()

	mgr.Enqueue(ctx, "doomed", Payload{URL: "doomed"})

	// Drive the item through its whole retry budget, honoring backoff.
	for i := 1; i <= policy.MaxRetries; i++ {
		res := f.Flush(ctx, failingSubmit)
		require.Equal(t, Result{Succeeded: 0, Failed: 1}, res, "attempt %d", i)
		clock.Advance(policy.Backoff(i))
	}

	// The 11th pass does not touch it.
	calls := 0
	res := f.Flush(ctx, func(ctx context.Context, it Item) error {
		calls++
		return nil
	})
	assert.Equal(t, Result{Succeeded: 0, Failed: 0}, res)
	assert.Equal(t, 0, calls)

	// Still visible until the expiry sweep takes it.
	pending := mgr.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, StatusExhausted, pending[0].Status)

	clock.Advance(DefaultExpiry)
	assert.Equal(t, 1, mgr.ClearExpired(ctx))
	assert.Empty(t, mgr.Pending(ctx))
}

func TestFlushInFlightGuard(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	f := NewFlusher(mgr, 10*time.Second)
	ctx := context.Background()

	mgr.Enqueue(ctx, "slow", Payload{URL: "slow"})

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.Flush(ctx, func(ctx context.Context, it Item) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	// Second trigger while the first pass is mid-submit: dropped.
	res := f.Flush(ctx, succeedingSubmit)
	assert.Equal(t, Result{Succeeded: 0, Failed: 0}, res)

	close(release)
	wg.Wait()
	assert.Empty(t, mgr.Pending(ctx), "first pass still completes normally")
}

func TestFlushSubmitTimeoutCountsAsFailure(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	f := NewFlusher(mgr, 20*time.Millisecond)
	ctx := context.Background()

	mgr.Enqueue(ctx, "hung", Payload{URL: "hung"})

	res := f.Flush(ctx, func(ctx context.Context, it Item) error {
		// Ignores its context entirely, like a stuck network call.
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	assert.Equal(t, Result{Succeeded: 0, Failed: 1}, res)
	pending := mgr.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Contains(t, pending[0].LastError, "timed out")
}

func TestFlushSubmitPanicCountsAsFailure(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	f := NewFlusher(mgr, time.Second)
	ctx := context.Background()

	mgr.Enqueue(ctx, "boom", Payload{URL: "boom"})

	res := f.Flush(ctx, func(ctx context.Context, it Item) error {
		panic("handler bug")
	})

	assert.Equal(t, Result{Succeeded: 0, Failed: 1}, res)
	pending := mgr.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0].LastError, "panicked")
}

func TestFlushStopsWhenStoreDropsWrites(t *testing.T) {
	ms := memory.New()
	clock := newTestClock()
	mgr := NewManager(ms, DefaultPolicy(), WithNowFunc(clock.Now))
	f := NewFlusher(mgr, time.Second)
	ctx := context.Background()

	mgr.Enqueue(ctx, "sticky", Payload{URL: "sticky"})

	// From here on every write is dropped, so MarkAttempt cannot stick and
	// the same item keeps coming back ready. The pass must bail out instead
	// of spinning.
	ms.SaveErr = errors.New("disk full")

	calls := 0
	res := f.Flush(ctx, func(ctx context.Context, it Item) error {
		calls++
		return errors.New("nope")
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, Result{Succeeded: 0, Failed: 1}, res)
}

func TestFlushMixedOutcomes(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	f := NewFlusher(mgr, time.Second)
	ctx := context.Background()

	mgr.Enqueue(ctx, "good", Payload{URL: "good"})
	mgr.Enqueue(ctx, "bad", Payload{URL: "bad"})

	res := f.Flush(ctx, func(ctx context.Context, it Item) error {
		if it.DedupKey == "bad" {
			return errors.New("rejected")
		}
		return nil
	})

	assert.Equal(t, Result{Succeeded: 1, Failed: 1}, res)
	pending := mgr.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, "bad", pending[0].DedupKey)
}
