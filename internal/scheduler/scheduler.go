// Package scheduler runs the Worker's periodic dispatch loop
// (spec.md §4.5).
package scheduler

import (
	"context"
	"errors"
	"log"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/bitbar/minting-monitor/internal/executor"
	"github.com/bitbar/minting-monitor/internal/monitorclient"
)

// Scheduler fetches the Monitor's pending-mint queue on a fixed period
// and dispatches each eligible item to the Executor, spaced by an
// inter-dispatch delay.
type Scheduler struct {
	interval          time.Duration
	interDispatchWait time.Duration
	walletName        string
	filePath          string
	monitor           *monitorclient.Client
	executor          *executor.Executor
}

// New creates a Scheduler.
func New(interval, interDispatchWait time.Duration, walletName, filePath string, mc *monitorclient.Client, ex *executor.Executor) *Scheduler {
	return &Scheduler{
		interval:          interval,
		interDispatchWait: interDispatchWait,
		walletName:        walletName,
		filePath:          filePath,
		monitor:           mc,
		executor:          ex,
	}
}

// Run blocks, ticking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	pending, err := s.monitor.PendingMints(ctx)
	if err != nil {
		if isConnectionRefused(err) {
			log.Printf("scheduler: connection refused talking to monitor, is it running? %v", err)
		} else {
			log.Printf("scheduler: fetching pending mints failed, retrying next tick: %v", err)
		}
		return
	}

	for _, item := range pending {
		if s.executor.IsInFlight(item.TxID) {
			// Confirmation has not yet round-tripped; don't double-dispatch.
			continue
		}
		s.executor.Execute(ctx, item.TxID, item.SenderAddress, s.walletName, s.filePath)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interDispatchWait):
		}
	}
}

// isConnectionRefused reports whether err ultimately wraps ECONNREFUSED,
// called out explicitly as needing a distinct diagnostic (spec.md §4.5
// step 1).
func isConnectionRefused(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		err = opErr.Err
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
