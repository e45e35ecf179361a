package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitbar/minting-monitor/internal/api"
	"github.com/bitbar/minting-monitor/internal/explorer"
	"github.com/bitbar/minting-monitor/internal/ingest"
	"github.com/bitbar/minting-monitor/internal/ledger"
	"github.com/bitbar/minting-monitor/internal/monitorconfig"
	"github.com/bitbar/minting-monitor/internal/poller"
	"github.com/bitbar/minting-monitor/internal/retention"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := monitorconfig.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Bitbar Minting Monitor starting...")
	log.Printf("Watched address: %s", cfg.WatchedAddress)
	log.Printf("Database: %s", cfg.DatabasePath)
	log.Printf("Poll interval: %v", cfg.PollInterval())
	log.Printf("Port: %d", cfg.Port)
	if cfg.EligibilityThresholdSats != ledger.EligibilityThresholdSats {
		log.Printf("Note: ELIGIBILITY_THRESHOLD_SATS=%d is configured but the ledger enforces the fixed %d sat threshold; see design notes", cfg.EligibilityThresholdSats, ledger.EligibilityThresholdSats)
	}

	l, err := ledger.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer l.Close()

	client := explorer.New(cfg.ExplorerBaseURL, cfg.UpstreamTimeout())
	ing := ingest.New(cfg.WatchedAddress, l, client)
	p := poller.New(cfg.WatchedAddress, cfg.PollInterval(), client, ing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if cfg.RetentionEnabled() {
		cleaner := retention.NewCleaner(l, cfg.RetentionDays)
		go cleaner.Run(ctx)
	} else {
		log.Printf("Retention sweep disabled (RETENTION_DAYS=0)")
	}

	go p.Run(ctx)

	server := api.NewServer(l, ing, p)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("HTTP server listening on port %d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Printf("Shutting down HTTP server...")
	httpServer.Shutdown(context.Background())
	log.Printf("Shutdown complete")
}
