package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aridsondez/SHARE-RELAY/internal/queue"
)

type Server struct {
	mgr     *queue.Manager
	flusher *queue.Flusher
	submit  queue.SubmitFunc
	addr    string
	timeout time.Duration
}

func NewServer(addr string, mgr *queue.Manager, flusher *queue.Flusher, submit queue.SubmitFunc) *http.Server {
	srv := &Server{
		mgr:     mgr,
		flusher: flusher,
		submit:  submit,
		addr:    addr,
		// Must cover a full flush pass, not just one store round-trip.
		timeout: 2 * time.Minute,
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(srv.timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// enqueue: POST /v1/shares
		r.Post("/shares", srv.handleEnqueue)

		// pending list / count
		r.Get("/shares", srv.handleList)
		r.Get("/shares/count", srv.handleCount)

		// flush: POST /v1/shares:flush
		r.Post("/shares:flush", srv.handleFlush)

		// operator wipe: DELETE /v1/shares
		r.Delete("/shares", srv.handleClearAll)

		r.Get("/shares/{id}", srv.handleGet)
		r.Patch("/shares/{id}", srv.handleUpdate)
		r.Delete("/shares/{id}", srv.handleDequeue)
	})

	return &http.Server{
		Addr:    srv.addr,
		Handler: r,
	}
}

type shareRequest struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
	TripID string `json:"trip_id,omitempty"`
	Note   string `json:"note,omitempty"`
}

type countResponse struct {
	Count int `json:"count"`
}

// ---------- Handlers ----------

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json: %v", err)
		return
	}
	if req.URL == "" {
		httpError(w, http.StatusBadRequest, "`url` is required")
		return
	}

	// The shared URL doubles as the dedup key: sharing the same link twice
	// must collapse into one queue entry.
	it := s.mgr.Enqueue(r.Context(), req.URL, queue.Payload{
		URL:    req.URL,
		Source: req.Source,
		TripID: req.TripID,
		Note:   req.Note,
	})
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items := s.mgr.Pending(r.Context())
	if items == nil {
		items = []queue.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &countResponse{Count: s.mgr.PendingCount(r.Context())})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	it, ok := s.mgr.ByID(r.Context(), id)
	if !ok {
		httpError(w, http.StatusNotFound, "share not found")
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json: %v", err)
		return
	}

	it, ok := s.mgr.Update(r.Context(), id, queue.Payload{
		URL:    req.URL,
		Source: req.Source,
		TripID: req.TripID,
		Note:   req.Note,
	})
	if !ok {
		httpError(w, http.StatusNotFound, "share not found")
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mgr.Dequeue(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	res := s.flusher.Flush(r.Context(), s.submit)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	s.mgr.ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ---------- helpers ----------

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
