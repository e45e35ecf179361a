package poller

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/bitbar/minting-monitor/internal/explorer"
	"github.com/bitbar/minting-monitor/internal/ingest"
)

// Poller periodically fetches transactions for the watched address and
// hands each to the Ingestor, sequentially. Ticks never overlap: if a
// tick is still running when the next is due, the next is dropped
// rather than queued (spec.md §4.1 step 3).
type Poller struct {
	watchedAddress string
	interval       time.Duration
	client         *explorer.Client
	ingestor       *ingest.Ingestor

	running   int32 // guards against overlapping ticks
	ready     int32 // set once the first tick completes, successfully or not
	lastCheck int64 // unix millis of the last tick attempt
}

// New creates a Poller for the given watched address and poll interval.
func New(watchedAddress string, interval time.Duration, client *explorer.Client, ingestor *ingest.Ingestor) *Poller {
	return &Poller{
		watchedAddress: watchedAddress,
		interval:       interval,
		client:         client,
		ingestor:       ingestor,
	}
}

// Run blocks, ticking until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// IsReady reports whether at least one tick has completed.
func (p *Poller) IsReady() bool {
	return atomic.LoadInt32(&p.ready) == 1
}

// LastCheckMs returns the unix-millis timestamp of the most recent tick
// attempt, or zero if none has run yet.
func (p *Poller) LastCheckMs() int64 {
	return atomic.LoadInt64(&p.lastCheck)
}

func (p *Poller) tick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		// Previous tick still in flight: drop this one.
		log.Printf("poller: previous tick still running, skipping this tick")
		return
	}
	defer atomic.StoreInt32(&p.running, 0)

	atomic.StoreInt64(&p.lastCheck, time.Now().UnixMilli())
	defer atomic.StoreInt32(&p.ready, 1)

	txs, err := p.client.AddressTxs(ctx, p.watchedAddress)
	if err != nil {
		log.Printf("poller: fetching address txs failed, aborting tick: %v", err)
		return
	}

	for _, tx := range txs {
		if err := p.ingestor.Ingest(ctx, tx); err != nil {
			log.Printf("poller: ingesting %s failed, skipping: %v", tx.TxID, err)
			continue
		}
	}
}
