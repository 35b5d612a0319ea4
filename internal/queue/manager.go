package queue

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aridsondez/SHARE-RELAY/internal/metrics"
	"github.com/aridsondez/SHARE-RELAY/internal/queue/store"
)

// Manager owns the durable collection of queued shares. Every operation is a
// read-modify-write over the whole collection, serialized behind one mutex so
// concurrent callers cannot lose each other's writes. No in-memory copy is
// kept between calls: every operation re-reads the store, so memory and disk
// cannot diverge across a crash.
//
// Storage failures are soft by design: a failed read behaves like an empty
// queue, a failed write drops the update. Losing a pending retry is
// preferable to crashing the host process.
type Manager struct {
	mu     sync.Mutex
	store  store.Store
	policy Policy
	nowFn  func() time.Time
	newID  func() string
}

// Option customizes a Manager.
type Option func(*Manager)

// WithNowFunc overrides the clock. Tests use this to drive backoff and
// expiry deterministically.
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.nowFn = now
		}
	}
}

// WithIDFunc overrides the item id generator.
func WithIDFunc(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

func NewManager(s store.Store, policy Policy, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		policy: policy,
		nowFn:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the manager's retry policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Now returns the manager's view of the current time.
func (m *Manager) Now() time.Time {
	return m.nowFn()
}

// load reads and decodes the whole collection. Callers must hold m.mu.
func (m *Manager) load(ctx context.Context) []Item {
	blob, err := m.store.Load(ctx)
	if err != nil {
		log.Printf("queue: load failed, treating as empty: %v", err)
		metrics.StoreErrors.Inc()
		return nil
	}
	if len(blob) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err == nil && env.Version >= 1 {
		return normalize(env.Items)
	}

	// Version 0: the original layout was a bare array with no version tag.
	var legacy []Item
	if err := json.Unmarshal(blob, &legacy); err != nil {
		log.Printf("queue: corrupt state blob dropped: %v", err)
		metrics.StoreErrors.Inc()
		return nil
	}
	return normalize(legacy)
}

// normalize backfills fields older persisted records may lack.
func normalize(items []Item) []Item {
	for i := range items {
		if items[i].Status == "" {
			items[i].Status = StatusPending
		}
	}
	return items
}

// save encodes and writes the whole collection. Callers must hold m.mu.
func (m *Manager) save(ctx context.Context, items []Item) {
	blob, err := json.Marshal(envelope{Version: schemaVersion, Items: items})
	if err != nil {
		log.Printf("queue: marshal state: %v", err)
		return
	}
	if err := m.store.Save(ctx, blob); err != nil {
		log.Printf("queue: save failed, update dropped: %v", err)
		metrics.StoreErrors.Inc()
	}
}

// Enqueue records a share for delivery. A second enqueue with the same dedup
// key replaces the payload but keeps the original id, creation time and retry
// state, so repeated shares of the same URL collapse into one entry.
func (m *Manager) Enqueue(ctx context.Context, dedupKey string, payload Payload) Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.load(ctx)
	for i := range items {
		if items[i].DedupKey == dedupKey {
			items[i].Payload = payload
			m.save(ctx, items)
			metrics.SharesDeduped.Inc()
			return items[i]
		}
	}

	it := Item{
		ID:        m.newID(),
		DedupKey:  dedupKey,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: m.nowFn(),
	}
	items = append(items, it)
	m.save(ctx, items)
	metrics.SharesEnqueued.Inc()
	return it
}

// Dequeue removes the item with the given id. No-op if absent.
func (m *Manager) Dequeue(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.load(ctx)
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) != len(items) {
		m.save(ctx, kept)
	}
}

// MarkAttempt records one delivery attempt: the retry counter advances, the
// attempt time is stamped, and the failure (if any) is kept for diagnostics.
// An item that reaches the retry budget is tagged exhausted so its dead-letter
// state is queryable rather than inferred from timing.
func (m *Manager) MarkAttempt(ctx context.Context, id string, attemptErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.load(ctx)
	now := m.nowFn()
	for i := range items {
		if items[i].ID != id {
			continue
		}
		items[i].RetryCount++
		items[i].LastRetryAt = &now
		if attemptErr != nil {
			items[i].LastError = attemptErr.Error()
		} else {
			items[i].LastError = ""
		}
		if items[i].RetryCount >= m.policy.MaxRetries {
			items[i].Status = StatusExhausted
			metrics.SharesExhausted.Inc()
		}
		m.save(ctx, items)
		return
	}
}

// Update merges the non-empty fields of partial into the item's payload
// without touching retry state. Used when the caller supplies missing
// information (say, a destination trip) before the next attempt.
func (m *Manager) Update(ctx context.Context, id string, partial Payload) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.load(ctx)
	for i := range items {
		if items[i].ID != id {
			continue
		}
		items[i].Payload = items[i].Payload.merge(partial)
		m.save(ctx, items)
		return items[i], true
	}
	return Item{}, false
}

// Pending returns all non-expired items in enqueue order. Exhausted items
// are included: they stay visible until the expiry sweep removes them.
func (m *Manager) Pending(ctx context.Context) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	var out []Item
	for _, it := range m.load(ctx) {
		if !m.policy.IsExpired(it, now) {
			out = append(out, it)
		}
	}
	return out
}

// PendingCount returns the number of non-expired items.
func (m *Manager) PendingCount(ctx context.Context) int {
	return len(m.Pending(ctx))
}

// ByID returns the item with the given id.
func (m *Manager) ByID(ctx context.Context, id string) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range m.load(ctx) {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// NextReady returns the first non-expired item ready for an attempt at now,
// scanning in enqueue order.
func (m *Manager) NextReady(ctx context.Context, now time.Time) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range m.load(ctx) {
		if m.policy.IsExpired(it, now) {
			continue
		}
		if m.policy.IsReady(it, now) {
			return it, true
		}
	}
	return Item{}, false
}

// ClearExpired removes items older than the expiry window, regardless of
// retry state, and returns how many were removed. The write is skipped when
// nothing changed to avoid storage churn.
func (m *Manager) ClearExpired(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.load(ctx)
	now := m.nowFn()
	kept := items[:0]
	for _, it := range items {
		if !m.policy.IsExpired(it, now) {
			kept = append(kept, it)
		}
	}
	removed := len(items) - len(kept)
	if removed > 0 {
		m.save(ctx, kept)
		metrics.SharesExpired.Add(float64(removed))
	}
	return removed
}

// ClearAll wipes the entire collection. Operator action, not normal flow.
func (m *Manager) ClearAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		log.Printf("queue: clear failed: %v", err)
		metrics.StoreErrors.Inc()
	}
}
