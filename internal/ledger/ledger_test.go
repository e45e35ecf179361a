package ledger

import (
	"testing"
)

func setupTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	return l
}

func strPtr(s string) *string { return &s }

func TestInsert_BelowThreshold(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	inserted, err := l.Insert("tx1", 1000, 1640, nil, strPtr("sender-S"))
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report inserted=true")
	}

	tx, err := l.Get("tx1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if tx == nil {
		t.Fatal("expected record to exist")
	}
	if tx.Status != StatusNotRequired {
		t.Errorf("Status = %v; want not_required", tx.Status)
	}
	if tx.AmountSats != 1640 {
		t.Errorf("AmountSats = %d; want 1640", tx.AmountSats)
	}

	pending, err := l.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListPending() = %d records; want 0", len(pending))
	}
}

func TestInsert_EligibleBoundary(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	if _, err := l.Insert("tx2", 1000, EligibilityThresholdSats, nil, strPtr("sender-S")); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	tx, err := l.Get("tx2")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if tx.Status != StatusPending {
		t.Errorf("Status = %v; want pending at exactly the threshold", tx.Status)
	}
}

func TestInsert_EligibleNoSender(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	if _, err := l.Insert("tx3", 1000, 2000, nil, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	tx, err := l.Get("tx3")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if tx.Status != StatusNotRequired {
		t.Errorf("Status = %v; want not_required when sender is absent (invariant 3)", tx.Status)
	}
}

func TestInsert_DuplicateTxidIsNoOp(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	inserted1, err := l.Insert("tx4", 1000, 2000, nil, strPtr("sender-S"))
	if err != nil || !inserted1 {
		t.Fatalf("first insert: inserted=%v err=%v", inserted1, err)
	}

	inserted2, err := l.Insert("tx4", 2000, 99999, nil, strPtr("someone-else"))
	if err != nil {
		t.Fatalf("second insert error: %v", err)
	}
	if inserted2 {
		t.Error("second insert of the same txid should report inserted=false")
	}

	tx, _ := l.Get("tx4")
	if tx.AmountSats != 2000 {
		t.Errorf("AmountSats changed on duplicate insert: got %d, want original 2000", tx.AmountSats)
	}
}

func TestListPending_OnlyWithSenderAndPendingStatus(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	l.Insert("tx-pending", 1000, 5000, nil, strPtr("S"))
	l.Insert("tx-not-required", 1000, 100, nil, strPtr("S"))
	l.Insert("tx-no-sender", 1000, 5000, nil, nil)

	pending, err := l.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListPending() returned %d records; want 1", len(pending))
	}
	if pending[0].TxID != "tx-pending" {
		t.Errorf("ListPending()[0].TxID = %s; want tx-pending", pending[0].TxID)
	}
	if pending[0].SenderAddress == nil {
		t.Error("pending record must have sender_address present")
	}
}

func TestConfirm_Ok(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	l.Insert("tx5", 1000, 5000, nil, strPtr("S"))

	result, err := l.Confirm("tx5", "insc-1")
	if err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	if result != ConfirmOK {
		t.Errorf("Confirm() = %v; want ok", result)
	}

	tx, _ := l.Get("tx5")
	if tx.Status != StatusCompleted {
		t.Errorf("Status = %v; want completed", tx.Status)
	}
	if tx.InscriptionID == nil || *tx.InscriptionID != "insc-1" {
		t.Errorf("InscriptionID = %v; want insc-1", tx.InscriptionID)
	}
	if tx.CompletedAtMs == nil {
		t.Error("CompletedAtMs should be set after confirm")
	}
}

func TestConfirm_SecondCallIsAlreadyCompleted(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	l.Insert("tx6", 1000, 5000, nil, strPtr("S"))
	l.Confirm("tx6", "insc-1")

	result, err := l.Confirm("tx6", "insc-2")
	if err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	if result != ConfirmAlreadyCompleted {
		t.Errorf("second Confirm() = %v; want already_completed", result)
	}

	// inscription_id from the first successful confirm must not be overwritten
	tx, _ := l.Get("tx6")
	if *tx.InscriptionID != "insc-1" {
		t.Errorf("InscriptionID = %s; want insc-1 (no downgrade/overwrite)", *tx.InscriptionID)
	}
}

func TestConfirm_NotFound(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	result, err := l.Confirm("missing", "insc-1")
	if err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	if result != ConfirmNotFound {
		t.Errorf("Confirm() = %v; want not_found", result)
	}
}

func TestConfirm_NotRequiredIsAlreadyCompleted(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	l.Insert("tx7", 1000, 100, nil, strPtr("S")) // below threshold -> not_required

	result, err := l.Confirm("tx7", "insc-1")
	if err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	if result != ConfirmAlreadyCompleted {
		t.Errorf("Confirm() on not_required = %v; want already_completed (conservative, no resurrection)", result)
	}

	tx, _ := l.Get("tx7")
	if tx.Status != StatusNotRequired {
		t.Error("not_required record must never transition to completed via confirm")
	}
}

func TestCounts(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	l.Insert("a", 1000, 5000, nil, strPtr("S"))
	l.Insert("b", 1000, 100, nil, strPtr("S"))
	l.Insert("c", 1000, 5000, nil, strPtr("S"))
	l.Confirm("c", "insc")

	counts, err := l.Counts()
	if err != nil {
		t.Fatalf("Counts() error: %v", err)
	}
	if counts.Total != 3 {
		t.Errorf("Total = %d; want 3", counts.Total)
	}
	if counts.Pending != 1 {
		t.Errorf("Pending = %d; want 1", counts.Pending)
	}
}

func TestDuplicateOutputSum(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	// Scenario 6 in spec.md §8: two 1000-sat outputs to the watched
	// address sum to 2000 and cross the eligibility threshold.
	if _, err := l.Insert("tx-dup-outputs", 1000, 2000, nil, strPtr("S")); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	tx, _ := l.Get("tx-dup-outputs")
	if tx.Status != StatusPending {
		t.Errorf("Status = %v; want pending for summed amount 2000", tx.Status)
	}
}

func TestListCompleted_NewestFirst(t *testing.T) {
	l := setupTestLedger(t)
	defer l.Close()

	l.Insert("old", 1000, 5000, nil, strPtr("S"))
	l.Confirm("old", "insc-old")
	l.Insert("new", 2000, 5000, nil, strPtr("S"))
	l.Confirm("new", "insc-new")

	completed, err := l.ListCompleted()
	if err != nil {
		t.Fatalf("ListCompleted() error: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("ListCompleted() = %d; want 2", len(completed))
	}
	if completed[0].CompletedAtMs == nil || completed[1].CompletedAtMs == nil {
		t.Fatal("expected both completed records to have CompletedAtMs set")
	}
	if *completed[0].CompletedAtMs < *completed[1].CompletedAtMs {
		t.Error("ListCompleted() must be ordered newest-first (non-increasing) by completed_at_ms")
	}
}
