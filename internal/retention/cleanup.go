package retention

import (
	"context"
	"log"
	"time"

	"github.com/bitbar/minting-monitor/internal/ledger"
)

// Cleaner handles periodic cleanup of non-pending transactions older
// than a configurable horizon (spec.md §9(c)). Disabled unless a
// positive retention horizon is configured.
type Cleaner struct {
	ledger        *ledger.Ledger
	retentionDays int
	interval      time.Duration
}

// NewCleaner creates a new retention cleaner.
func NewCleaner(l *ledger.Ledger, retentionDays int) *Cleaner {
	return &Cleaner{
		ledger:        l,
		retentionDays: retentionDays,
		interval:      1 * time.Hour,
	}
}

// Run starts the cleanup loop.
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Don't run cleanup at startup - it can block the database for a
	// while on a large ledger. Let it run on the regular interval.
	log.Printf("Retention cleanup scheduled to run every %v (keeping %d days, skipping startup run)", c.interval, c.retentionDays)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cleaner) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -c.retentionDays).UnixMilli()

	deleted, err := c.ledger.DeleteCompletedOlderThan(cutoff)
	if err != nil {
		log.Printf("Error during retention cleanup: %v", err)
		return
	}

	log.Printf("Retention cleanup deleted %d non-pending transactions older than %d days", deleted, c.retentionDays)
}
