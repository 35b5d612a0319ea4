package queue

import "time"

// schemaVersion tags the persisted envelope. Version 0 (a bare JSON array,
// the original layout) is still accepted on read and upgraded on the next
// write.
const schemaVersion = 1

// Status is the explicit lifecycle tag of a queued share.
type Status string

const (
	// StatusPending means the item is waiting for delivery (ready or backing off).
	StatusPending Status = "pending"
	// StatusExhausted means the retry budget is spent; the item is inert
	// until the expiry sweep removes it.
	StatusExhausted Status = "exhausted"
)

// Payload carries the caller-defined share fields. The queue persists and
// returns them but never interprets them.
type Payload struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
	TripID string `json:"trip_id,omitempty"`
	Note   string `json:"note,omitempty"`
}

// merge overlays the non-empty fields of in onto p.
func (p Payload) merge(in Payload) Payload {
	if in.URL != "" {
		p.URL = in.URL
	}
	if in.Source != "" {
		p.Source = in.Source
	}
	if in.TripID != "" {
		p.TripID = in.TripID
	}
	if in.Note != "" {
		p.Note = in.Note
	}
	return p
}

// Item is the durable share queue row mapped to Go.
type Item struct {
	ID          string     `json:"id"`
	DedupKey    string     `json:"dedup_key"`
	Payload     Payload    `json:"payload"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RetryCount  int        `json:"retry_count"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// envelope is the persisted layout: one JSON document under one storage key.
type envelope struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}
