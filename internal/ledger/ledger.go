package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

// EligibilityThresholdSats is the minimum amount_sats for a transaction to
// be classified pending rather than not_required.
const EligibilityThresholdSats = 1641

// ConfirmResult is the outcome of a confirm-mint call.
type ConfirmResult string

const (
	ConfirmOK               ConfirmResult = "ok"
	ConfirmNotFound         ConfirmResult = "not_found"
	ConfirmAlreadyCompleted ConfirmResult = "already_completed"
)

// classify applies invariants 3 and 4: pending requires both eligibility
// and a known sender; everything else is not_required.
func classify(amountSats int64, senderAddress *string) Status {
	if amountSats >= EligibilityThresholdSats && senderAddress != nil && *senderAddress != "" {
		return StatusPending
	}
	return StatusNotRequired
}

// Insert records a newly-observed transaction. It is the Ingestor's
// idempotence anchor: a second insert for the same txid is a no-op and
// reports inserted=false with no error.
func (l *Ledger) Insert(txid string, firstSeenMs int64, amountSats int64, blockHeight *uint64, senderAddress *string) (inserted bool, err error) {
	if amountSats < 0 {
		return false, fmt.Errorf("invalid amount_sats %d for txid %s", amountSats, txid)
	}

	status := classify(amountSats, senderAddress)

	res, err := l.conn.Exec(`
		INSERT OR IGNORE INTO transactions
			(txid, first_seen_ms, amount_sats, block_height, sender_address, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, txid, firstSeenMs, amountSats, nullUint64(blockHeight), nullString(senderAddress), string(status))
	if err != nil {
		return false, fmt.Errorf("inserting transaction %s: %w", txid, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result for %s: %w", txid, err)
	}
	return n > 0, nil
}

// Get returns the record for txid, or (nil, nil) if absent.
func (l *Ledger) Get(txid string) (*Transaction, error) {
	row := l.conn.QueryRow(`
		SELECT txid, first_seen_ms, amount_sats, block_height, sender_address, status, inscription_id, completed_at_ms
		FROM transactions WHERE txid = ?
	`, txid)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction %s: %w", txid, err)
	}
	return tx, nil
}

// ListPending returns all records with status=pending. Per invariant 3
// every such record also has sender_address present. Ordered by
// first_seen_ms ascending.
func (l *Ledger) ListPending() ([]*Transaction, error) {
	rows, err := l.conn.Query(`
		SELECT txid, first_seen_ms, amount_sats, block_height, sender_address, status, inscription_id, completed_at_ms
		FROM transactions WHERE status = ? ORDER BY first_seen_ms ASC
	`, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListCompleted returns all records with status=completed, newest first.
func (l *Ledger) ListCompleted() ([]*Transaction, error) {
	rows, err := l.conn.Query(`
		SELECT txid, first_seen_ms, amount_sats, block_height, sender_address, status, inscription_id, completed_at_ms
		FROM transactions WHERE status = ? ORDER BY completed_at_ms DESC
	`, string(StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("listing completed transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// Confirm transitions a pending record to completed. It is the only
// writer of inscription_id/completed_at_ms and is the serialization
// point for the exactly-once-under-retry protocol: concurrent confirms
// for the same txid yield exactly one ConfirmOK.
func (l *Ledger) Confirm(txid, inscriptionID string) (ConfirmResult, error) {
	tx, err := l.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning confirm transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT status FROM transactions WHERE txid = ?`, txid)
	var status string
	if err := row.Scan(&status); err == sql.ErrNoRows {
		return ConfirmNotFound, nil
	} else if err != nil {
		return "", fmt.Errorf("reading status for %s: %w", txid, err)
	}

	// A not_required record is never resurrected into pending/completed;
	// treated as an idempotent success so the Worker does not loop.
	if status != string(StatusPending) {
		return ConfirmAlreadyCompleted, nil
	}

	completedAtMs := time.Now().UnixMilli()
	_, err = tx.Exec(`
		UPDATE transactions SET status = ?, inscription_id = ?, completed_at_ms = ?
		WHERE txid = ? AND status = ?
	`, string(StatusCompleted), inscriptionID, completedAtMs, txid, string(StatusPending))
	if err != nil {
		return "", fmt.Errorf("confirming %s: %w", txid, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing confirm for %s: %w", txid, err)
	}
	return ConfirmOK, nil
}

// Counts reports ledger-wide totals for the status endpoint.
func (l *Ledger) Counts() (Counts, error) {
	var c Counts
	if err := l.conn.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&c.Total); err != nil {
		return c, fmt.Errorf("counting transactions: %w", err)
	}
	if err := l.conn.QueryRow(`SELECT COUNT(*) FROM transactions WHERE status = ?`, string(StatusPending)).Scan(&c.Pending); err != nil {
		return c, fmt.Errorf("counting pending transactions: %w", err)
	}
	return c, nil
}

// DeleteCompletedOlderThan implements the optional retention sweep
// described in spec.md §9(c): disabled by default, it removes
// non-pending records whose first_seen_ms predates the cutoff. Pending
// records are never deleted (they are immortal per spec.md §3).
func (l *Ledger) DeleteCompletedOlderThan(cutoffMs int64) (int64, error) {
	res, err := l.conn.Exec(`
		DELETE FROM transactions WHERE status != ? AND first_seen_ms < ?
	`, string(StatusPending), cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("sweeping retired transactions: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (*Transaction, error) {
	var (
		tx          Transaction
		blockHeight sql.NullInt64
		sender      sql.NullString
		inscID      sql.NullString
		completedAt sql.NullInt64
		status      string
	)
	if err := s.Scan(&tx.TxID, &tx.FirstSeenMs, &tx.AmountSats, &blockHeight, &sender, &status, &inscID, &completedAt); err != nil {
		return nil, err
	}
	tx.Status = Status(status)
	if blockHeight.Valid {
		v := uint64(blockHeight.Int64)
		tx.BlockHeight = &v
	}
	if sender.Valid {
		v := sender.String
		tx.SenderAddress = &v
	}
	if inscID.Valid {
		v := inscID.String
		tx.InscriptionID = &v
	}
	if completedAt.Valid {
		v := completedAt.Int64
		tx.CompletedAtMs = &v
	}
	return &tx, nil
}

func scanTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var out []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func nullUint64(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
