package queue

import "time"

// Default retry policy. Values are tuned for a mobile share queue: the first
// retry comes quickly, later ones back off to at most an hour, and anything
// older than a week is abandoned.
const (
	DefaultBackoffBase = 5 * time.Second
	DefaultBackoffMax  = time.Hour
	DefaultMaxRetries  = 10
	DefaultExpiry      = 7 * 24 * time.Hour
)

// Policy computes backoff timing, readiness and expiration for queued items.
// It is pure: the current time is always a parameter, so it is testable
// without a clock.
type Policy struct {
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxRetries  int
	Expiry      time.Duration
}

// DefaultPolicy returns the stock production policy.
func DefaultPolicy() Policy {
	return Policy{
		BackoffBase: DefaultBackoffBase,
		BackoffMax:  DefaultBackoffMax,
		MaxRetries:  DefaultMaxRetries,
		Expiry:      DefaultExpiry,
	}
}

// Backoff returns the delay imposed after retryCount failed attempts: the
// first retry waits BackoffBase, each later one doubles, saturating at
// BackoffMax. Doubling iteratively instead of shifting avoids overflow for
// large counts.
func (p Policy) Backoff(retryCount int) time.Duration {
	d := p.BackoffBase
	for i := 1; i < retryCount; i++ {
		if d >= p.BackoffMax {
			return p.BackoffMax
		}
		d *= 2
	}
	if d > p.BackoffMax {
		d = p.BackoffMax
	}
	return d
}

// NextEligibleAt returns the earliest instant the item may be attempted
// again after its most recent attempt.
func (p Policy) NextEligibleAt(retryCount int, lastRetryAt time.Time) time.Time {
	return lastRetryAt.Add(p.Backoff(retryCount))
}

// IsReady reports whether the item is eligible for an attempt right now:
// budget not exhausted and backoff elapsed (or never attempted).
func (p Policy) IsReady(it Item, now time.Time) bool {
	if it.Status == StatusExhausted || it.RetryCount >= p.MaxRetries {
		return false
	}
	if it.LastRetryAt == nil {
		return true
	}
	return !now.Before(p.NextEligibleAt(it.RetryCount, *it.LastRetryAt))
}

// IsExpired reports whether the item has outlived the expiry window. An item
// exactly Expiry old is not yet expired.
func (p Policy) IsExpired(it Item, now time.Time) bool {
	return now.Sub(it.CreatedAt) > p.Expiry
}
