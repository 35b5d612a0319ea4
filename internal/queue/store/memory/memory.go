package memory

import (
	"context"
	"sync"

	"github.com/aridsondez/SHARE-RELAY/internal/queue/store"
)

// Ensure *MemoryStore implements store.Store at compile time.
var _ store.Store = (*MemoryStore)(nil)

// MemoryStore keeps the blob in process memory. Used by tests and the demo
// binary. LoadErr/SaveErr can be set to exercise the queue's soft-fail
// behavior, and Saves reports how many writes happened so tests can assert
// that no-op operations skip the write.
type MemoryStore struct {
	mu    sync.Mutex
	blob  []byte
	saves int

	LoadErr error
	SaveErr error
}

func New() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.blob == nil {
		return nil, nil
	}
	out := make([]byte, len(m.blob))
	copy(out, m.blob)
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.blob = make([]byte, len(blob))
	copy(m.blob, blob)
	m.saves++
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = nil
	return nil
}

// Saves returns the number of successful writes so far.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// SetBlob seeds the store directly, bypassing the save counter.
func (m *MemoryStore) SetBlob(blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = blob
}
