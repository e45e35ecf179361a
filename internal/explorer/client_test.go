package explorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAddressTxs_ParsesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"txid": "abc123",
				"vout": [{"scriptpubkey_address": "watched", "value": 2000}],
				"status": {"confirmed": true, "block_height": 800000}
			},
			{
				"txid": "def456",
				"vout": [{"scriptpubkey_address": "watched", "value": 1000}],
				"status": {"confirmed": false}
			}
		]`))
	}))
	defer srv.Close()

	client := New(srv.URL, 5*time.Second)
	txs, err := client.AddressTxs(context.Background(), "watched")
	if err != nil {
		t.Fatalf("AddressTxs() error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("len(txs) = %d; want 2", len(txs))
	}
	if txs[0].Status.BlockHeight == nil || *txs[0].Status.BlockHeight != 800000 {
		t.Errorf("txs[0].Status.BlockHeight = %v; want 800000", txs[0].Status.BlockHeight)
	}
	if txs[1].Status.BlockHeight != nil {
		t.Error("txs[1].Status.BlockHeight should be absent, not zero, for an unconfirmed tx")
	}
}

func TestAddressTxs_NonTwoXX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, 5*time.Second)
	if _, err := client.AddressTxs(context.Background(), "watched"); err == nil {
		t.Error("expected error on non-2xx upstream response")
	}
}

func TestAddressTxs_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := New(srv.URL, 1*time.Millisecond)
	if _, err := client.AddressTxs(context.Background(), "watched"); err == nil {
		t.Error("expected timeout error")
	}
}

func TestTx_Detail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"txid": "abc123",
			"vin": [{"prevout": {"scriptpubkey_address": "sender-S"}}],
			"vout": [{"scriptpubkey_address": "watched", "value": 2000}],
			"status": {"confirmed": true, "block_height": 800000}
		}`))
	}))
	defer srv.Close()

	client := New(srv.URL, 5*time.Second)
	tx, err := client.Tx(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Tx() error: %v", err)
	}
	if len(tx.Vin) != 1 || tx.Vin[0].Prevout == nil || tx.Vin[0].Prevout.ScriptPubKeyAddress != "sender-S" {
		t.Errorf("unexpected Vin: %+v", tx.Vin)
	}
}
