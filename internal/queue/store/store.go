package store

import "context"

// Store is the durable key/value primitive behind the retry queue. The queue
// persists its whole collection as a single blob under one key; there are no
// partial updates at this layer.
type Store interface {
	// Load returns the persisted blob, or nil if nothing has been written.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the persisted blob entirely.
	Save(ctx context.Context, blob []byte) error

	// Clear removes the blob.
	Clear(ctx context.Context) error
}
