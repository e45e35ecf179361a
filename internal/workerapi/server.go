// Package workerapi is the Worker's local HTTP introspection server
// (spec.md §6).
package workerapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bitbar/minting-monitor/internal/executor"
	"github.com/bitbar/minting-monitor/internal/journal"
)

// Server exposes the Worker's in-memory state for operator inspection.
type Server struct {
	executor  *executor.Executor
	journal   *journal.Journal
	startedAt time.Time
	mux       *http.ServeMux
}

// NewServer creates a new Worker introspection server.
func NewServer(ex *executor.Executor, j *journal.Journal) *Server {
	s := &Server{
		executor:  ex,
		journal:   j,
		startedAt: time.Now(),
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("/status", s.corsMiddleware(s.status))
	s.mux.HandleFunc("/mints", s.corsMiddleware(s.mints))
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next(w, r)
	}
}

type statusResponse struct {
	Uptime           int64            `json:"uptime"`
	ActiveOperations []string         `json:"activeOperations"`
	PendingRetries   []executor.Retry `json:"pendingRetries"`
	TotalMints       int              `json:"totalMints"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	records, err := s.journal.Records()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		Uptime:           int64(time.Since(s.startedAt).Seconds()),
		ActiveOperations: s.executor.ActiveOperations(),
		PendingRetries:   s.executor.Retries(),
		TotalMints:       len(records),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) mints(w http.ResponseWriter, r *http.Request) {
	records, err := s.journal.Records()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
