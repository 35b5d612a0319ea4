package queue

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aridsondez/SHARE-RELAY/internal/metrics"
)

// DefaultSubmitTimeout bounds a single delivery attempt. A hung upstream
// call must not block the flush loop forever.
const DefaultSubmitTimeout = 30 * time.Second

// SubmitFunc attempts delivery of one share. Returning nil means delivered
// (the item is removed); an error, timeout or panic counts as a failed
// attempt and schedules the next retry.
type SubmitFunc func(ctx context.Context, it Item) error

// Result aggregates one flush pass.
type Result struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Flusher drives delivery passes over the queue. At most one pass runs at a
// time: overlapping triggers (app-foreground and connectivity-restored firing
// close together) are dropped, not queued.
type Flusher struct {
	mgr           *Manager
	submitTimeout time.Duration
	inFlight      atomic.Bool
}

func NewFlusher(mgr *Manager, submitTimeout time.Duration) *Flusher {
	if submitTimeout <= 0 {
		submitTimeout = DefaultSubmitTimeout
	}
	return &Flusher{mgr: mgr, submitTimeout: submitTimeout}
}

// Flush sweeps expired items, then attempts every currently-ready item once.
//
// Termination: a successful item is dequeued; a failed one gets
// lastRetryAt stamped past the pass's reference time, which keeps it out of
// NextReady for the rest of the pass. Either way no item is selected twice,
// so the loop is bounded by the number of ready items. Do not "peek and
// retry immediately" without advancing lastRetryAt first.
func (f *Flusher) Flush(ctx context.Context, submit SubmitFunc) Result {
	if !f.inFlight.CompareAndSwap(false, true) {
		log.Printf("flush: pass already running, trigger dropped")
		metrics.FlushesSkipped.Inc()
		return Result{}
	}
	defer f.inFlight.Store(false)

	timer := prometheus.NewTimer(metrics.FlushDuration)
	defer timer.ObserveDuration()

	f.mgr.ClearExpired(ctx)

	var res Result
	now := f.mgr.Now()
	attempted := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return res
		default:
		}

		it, ok := f.mgr.NextReady(ctx, now)
		if !ok {
			return res
		}
		if _, dup := attempted[it.ID]; dup {
			// Only possible when the store is dropping writes and
			// MarkAttempt did not stick. Bail out instead of spinning.
			log.Printf("flush: item %s came back after an attempt, aborting pass", it.ID)
			return res
		}
		attempted[it.ID] = struct{}{}

		if err := f.attempt(ctx, submit, it); err != nil {
			log.Printf("flush: share %s attempt %d failed: %v", it.ID, it.RetryCount+1, err)
			f.mgr.MarkAttempt(ctx, it.ID, err)
			metrics.AttemptsFailed.Inc()
			res.Failed++
		} else {
			f.mgr.Dequeue(ctx, it.ID)
			metrics.SharesDelivered.Inc()
			res.Succeeded++
		}
	}
}

// attempt bounds one submit call with the configured timeout and converts a
// panic into an ordinary failed attempt. The call runs in its own goroutine
// so even a submit that ignores its context cannot stall the pass; a hung
// call is abandoned once the deadline passes.
func (f *Flusher) attempt(ctx context.Context, submit SubmitFunc, it Item) error {
	ctx, cancel := context.WithTimeout(ctx, f.submitTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("submit panicked: %v", r)
			}
		}()
		done <- submit(ctx, it)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("submit timed out: %w", ctx.Err())
	}
}
