package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aridsondez/SHARE-RELAY/internal/queue"
	"github.com/aridsondez/SHARE-RELAY/internal/queue/store/memory"
)

func newTestServer(t *testing.T, submit queue.SubmitFunc) *httptest.Server {
	t.Helper()
	mgr := queue.NewManager(memory.New(), queue.DefaultPolicy())
	flusher := queue.NewFlusher(mgr, time.Second)
	if submit == nil {
		submit = func(ctx context.Context, it queue.Item) error { return nil }
	}
	srv := NewServer(":0", mgr, flusher, submit)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestEnqueueAndList(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/shares", `{"url":"https://example.com/a","source":"ios-share-sheet"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[queue.Item](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "https://example.com/a", created.DedupKey)

	// Same URL again: collapses, same id.
	resp = postJSON(t, ts.URL+"/v1/shares", `{"url":"https://example.com/a","note":"later"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	dup := decode[queue.Item](t, resp)
	assert.Equal(t, created.ID, dup.ID)

	listResp, err := http.Get(ts.URL + "/v1/shares")
	require.NoError(t, err)
	items := decode[[]queue.Item](t, listResp)
	require.Len(t, items, 1)
	assert.Equal(t, "later", items[0].Payload.Note)

	countResp, err := http.Get(ts.URL + "/v1/shares/count")
	require.NoError(t, err)
	count := decode[map[string]int](t, countResp)
	assert.Equal(t, 1, count["count"])
}

func TestEnqueueRequiresURL(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/shares", `{"note":"no url"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/shares", `{invalid`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUpdateDequeue(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/shares", `{"url":"https://example.com/a"}`)
	created := decode[queue.Item](t, resp)

	getResp, err := http.Get(ts.URL + "/v1/shares/" + created.ID)
	require.NoError(t, err)
	got := decode[queue.Item](t, getResp)
	assert.Equal(t, created.ID, got.ID)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/v1/shares/"+created.ID,
		strings.NewReader(`{"trip_id":"trip-123"}`))
	require.NoError(t, err)
	patchResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	updated := decode[queue.Item](t, patchResp)
	assert.Equal(t, "trip-123", updated.Payload.TripID)
	assert.Equal(t, "https://example.com/a", updated.Payload.URL)

	del, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/shares/"+created.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(del)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	missing, err := http.Get(ts.URL + "/v1/shares/" + created.ID)
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestFlushEndpoint(t *testing.T) {
	calls := 0
	ts := newTestServer(t, func(ctx context.Context, it queue.Item) error {
		calls++
		if it.DedupKey == "https://example.com/bad" {
			return errors.New("rejected upstream")
		}
		return nil
	})

	postJSON(t, ts.URL+"/v1/shares", `{"url":"https://example.com/good"}`).Body.Close()
	postJSON(t, ts.URL+"/v1/shares", `{"url":"https://example.com/bad"}`).Body.Close()

	resp := postJSON(t, ts.URL+"/v1/shares:flush", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[queue.Result](t, resp)
	assert.Equal(t, queue.Result{Succeeded: 1, Failed: 1}, res)
	assert.Equal(t, 2, calls)

	listResp, err := http.Get(ts.URL + "/v1/shares")
	require.NoError(t, err)
	items := decode[[]queue.Item](t, listResp)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].RetryCount)
	assert.Contains(t, items[0].LastError, "rejected")
}

func TestClearAllEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	postJSON(t, ts.URL+"/v1/shares", `{"url":"https://example.com/a"}`).Body.Close()
	postJSON(t, ts.URL+"/v1/shares", `{"url":"https://example.com/b"}`).Body.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/shares", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	listResp, err := http.Get(ts.URL + "/v1/shares")
	require.NoError(t, err)
	items := decode[[]queue.Item](t, listResp)
	assert.Empty(t, items)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
