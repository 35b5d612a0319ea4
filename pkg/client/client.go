package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client for the share relay API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new share relay client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Share mirrors the relay's queued item as seen over the wire.
type Share struct {
	ID          string     `json:"id"`
	DedupKey    string     `json:"dedup_key"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RetryCount  int        `json:"retry_count"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Payload     struct {
		URL    string `json:"url"`
		Source string `json:"source,omitempty"`
		TripID string `json:"trip_id,omitempty"`
		Note   string `json:"note,omitempty"`
	} `json:"payload"`
}

// FlushResult aggregates one flush pass.
type FlushResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// EnqueueOptions for customizing a share
type EnqueueOptions struct {
	Source string // Where the share came from (e.g. "ios-share-sheet")
	TripID string // Destination trip, if already chosen
	Note   string // Free-text note
}

// Enqueue records a shared URL for eventual delivery.
func (c *Client) Enqueue(ctx context.Context, url string, opts *EnqueueOptions) (Share, error) {
	if opts == nil {
		opts = &EnqueueOptions{}
	}

	reqBody, err := json.Marshal(map[string]string{
		"url":     url,
		"source":  opts.Source,
		"trip_id": opts.TripID,
		"note":    opts.Note,
	})
	if err != nil {
		return Share{}, err
	}

	endpoint := fmt.Sprintf("%s/v1/shares", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return Share{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Share{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Share{}, fmt.Errorf("enqueue failed: %s - %s", resp.Status, string(bodyBytes))
	}

	var share Share
	if err := json.NewDecoder(resp.Body).Decode(&share); err != nil {
		return Share{}, err
	}
	return share, nil
}

// Pending lists all non-expired queued shares.
func (c *Client) Pending(ctx context.Context) ([]Share, error) {
	endpoint := fmt.Sprintf("%s/v1/shares", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("pending failed: %s - %s", resp.Status, string(bodyBytes))
	}

	var shares []Share
	if err := json.NewDecoder(resp.Body).Decode(&shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// Flush triggers one delivery pass and reports the aggregate outcome.
func (c *Client) Flush(ctx context.Context) (FlushResult, error) {
	endpoint := fmt.Sprintf("%s/v1/shares:flush", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return FlushResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return FlushResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return FlushResult{}, fmt.Errorf("flush failed: %s - %s", resp.Status, string(bodyBytes))
	}

	var result FlushResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return FlushResult{}, err
	}
	return result, nil
}
