package ledger

// Status is the lifecycle state of a transaction record.
type Status string

const (
	StatusNotRequired Status = "not_required"
	StatusPending     Status = "pending"
	StatusCompleted   Status = "completed"
)

// Transaction is the only persistent entity the Ledger owns: a single
// watched-address payment, de-duplicated by txid.
type Transaction struct {
	TxID          string  `json:"txid"`
	FirstSeenMs   int64   `json:"first_seen_ms"`
	AmountSats    int64   `json:"amount_sats"`
	BlockHeight   *uint64 `json:"block_height,omitempty"`
	SenderAddress *string `json:"sender_address,omitempty"`
	Status        Status  `json:"status"`
	InscriptionID *string `json:"inscription_id,omitempty"`
	CompletedAtMs *int64  `json:"completed_at_ms,omitempty"`
}

// Counts summarizes the ledger for the Monitor.API status endpoint.
type Counts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
}
