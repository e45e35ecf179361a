package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client fetches transactions for the watched address from the upstream
// block-explorer HTTP API. It is an opaque JSON source per spec.md §1:
// this package never interprets consensus or block data, only shapes
// the JSON into Tx values.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client with the given upstream base URL and per-request
// timeout (spec.md §6: UPSTREAM_TIMEOUT_MS, default 5s).
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AddressTxs fetches the list of transactions for addr, most-recent
// upstream ordering preserved (may mix confirmed and mempool entries).
func (c *Client) AddressTxs(ctx context.Context, addr string) ([]Tx, error) {
	var txs []Tx
	url := fmt.Sprintf("%s/address/%s/txs", c.baseURL, addr)
	if err := c.getJSON(ctx, url, &txs); err != nil {
		return nil, fmt.Errorf("fetching address txs: %w", err)
	}
	return txs, nil
}

// Tx fetches the full detail transaction, used to recover an input's
// previous-output address when the address-listing response omitted it.
func (c *Client) Tx(ctx context.Context, txid string) (*Tx, error) {
	var tx Tx
	url := fmt.Sprintf("%s/tx/%s", c.baseURL, txid)
	if err := c.getJSON(ctx, url, &tx); err != nil {
		return nil, fmt.Errorf("fetching tx detail: %w", err)
	}
	return &tx, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("upstream returned HTTP %d for %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding upstream response: %w", err)
	}
	return nil
}
