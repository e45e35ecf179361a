package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/bitbar/minting-monitor/internal/ingest"
	"github.com/bitbar/minting-monitor/internal/ledger"
	"github.com/bitbar/minting-monitor/internal/poller"
)

// Server is the Monitor's HTTP/JSON API (spec.md §4.4, §6).
type Server struct {
	ledger    *ledger.Ledger
	ingestor  *ingest.Ingestor
	poller    *poller.Poller
	startedAt time.Time
	mux       *http.ServeMux
}

// NewServer creates a new Monitor API server.
func NewServer(l *ledger.Ledger, ing *ingest.Ingestor, p *poller.Poller) *Server {
	s := &Server{
		ledger:    l,
		ingestor:  ing,
		poller:    p,
		startedAt: time.Now(),
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/pending-mints", s.corsMiddleware(s.pendingMints))
	s.mux.HandleFunc("/api/confirm-mint", s.corsMiddleware(s.confirmMint))
	s.mux.HandleFunc("/api/status", s.corsMiddleware(s.status))
	s.mux.HandleFunc("/api/minted", s.corsMiddleware(s.minted))
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.mux)
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, ErrorResponse{Error: message})
}
