package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aridsondez/SHARE-RELAY/internal/queue"
)

// Submitter delivers captured shares to the upstream backend. Its Submit
// method satisfies queue.SubmitFunc: nil means delivered, any error schedules
// a retry. HTTP-layer retry nuance deliberately lives here, not in the queue.
type Submitter struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(baseURL, token string) *Submitter {
	return &Submitter{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sharePayload struct {
	URL       string `json:"url"`
	Source    string `json:"source,omitempty"`
	TripID    string `json:"trip_id,omitempty"`
	Note      string `json:"note,omitempty"`
	ClientRef string `json:"client_ref"`
}

// Submit posts one share to the backend. The item id travels along as
// client_ref so the backend can deduplicate a retry that raced a success.
func (s *Submitter) Submit(ctx context.Context, it queue.Item) error {
	body, err := json.Marshal(sharePayload{
		URL:       it.Payload.URL,
		Source:    it.Payload.Source,
		TripID:    it.Payload.TripID,
		Note:      it.Payload.Note,
		ClientRef: it.ID,
	})
	if err != nil {
		return fmt.Errorf("marshal share: %w", err)
	}

	url := fmt.Sprintf("%s/v1/shares", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("submit failed: %s - %s", resp.Status, string(bodyBytes))
	}

	return nil
}
