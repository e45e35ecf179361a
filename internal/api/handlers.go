package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bitbar/minting-monitor/internal/ledger"
)

// pendingMints handles GET /api/pending-mints (spec.md §6). Only
// records with status=pending and sender_address present are eligible
// for listing here; per invariant 3 every pending record qualifies.
func (s *Server) pendingMints(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.ListPending()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]PendingMint, 0, len(records))
	for _, rec := range records {
		if rec.SenderAddress == nil {
			continue
		}
		out = append(out, PendingMint{
			TxID:          rec.TxID,
			Amount:        rec.AmountSats,
			Timestamp:     rec.FirstSeenMs,
			SenderAddress: *rec.SenderAddress,
		})
	}

	s.jsonResponse(w, http.StatusOK, out)
}

// confirmMint handles POST /api/confirm-mint.
func (s *Server) confirmMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ConfirmMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TxID == "" {
		s.errorResponse(w, http.StatusBadRequest, "txid is required")
		return
	}

	result, err := s.ledger.Confirm(req.TxID, req.InscriptionID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch result {
	case ledger.ConfirmNotFound:
		s.errorResponse(w, http.StatusNotFound, "unknown txid")
		return
	case ledger.ConfirmAlreadyCompleted:
		s.errorResponse(w, http.StatusBadRequest, "already completed")
		return
	}

	tx, err := s.ledger.Get(req.TxID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, ConfirmMintResponse{Success: true, Transaction: tx})
}

// status handles GET /api/status.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	counts, err := s.ledger.Counts()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	var lastCheck int64
	var ready bool
	if s.poller != nil {
		lastCheck = s.poller.LastCheckMs()
		ready = s.poller.IsReady()
	}

	var ingested, skippedDup, skippedZero int64
	if s.ingestor != nil {
		ingested, skippedDup, skippedZero = s.ingestor.Stats()
	}

	s.jsonResponse(w, http.StatusOK, StatusResponse{
		TotalTransactions:      counts.Total,
		PendingMints:           counts.Pending,
		Uptime:                 int64(time.Since(s.startedAt).Seconds()),
		LastCheck:              lastCheck,
		Ready:                  ready,
		StatsIngested:          ingested,
		StatsSkippedDuplicate:  skippedDup,
		StatsSkippedZeroAmount: skippedZero,
	})
}

// minted handles GET /api/minted.
func (s *Server) minted(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.ListCompleted()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, records)
}
