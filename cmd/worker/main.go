package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitbar/minting-monitor/internal/executor"
	"github.com/bitbar/minting-monitor/internal/journal"
	"github.com/bitbar/minting-monitor/internal/monitorclient"
	"github.com/bitbar/minting-monitor/internal/scheduler"
	"github.com/bitbar/minting-monitor/internal/workerapi"
	"github.com/bitbar/minting-monitor/internal/workerconfig"
)

// parseArgs implements the Worker's CLI surface (spec.md §6):
// `mint <wallet-name> <file-path>`.
func parseArgs(args []string) (walletName, filePath string, err error) {
	if len(args) != 3 || args[0] != "mint" {
		return "", "", fmt.Errorf("usage: %s mint <wallet-name> <file-path>", os.Args[0])
	}
	walletName, filePath = args[1], args[2]
	if walletName == "" {
		return "", "", fmt.Errorf("wallet-name is required")
	}
	if filePath == "" {
		return "", "", fmt.Errorf("file-path is required")
	}
	if _, err := os.Stat(filePath); err != nil {
		return "", "", fmt.Errorf("file-path %q does not exist: %w", filePath, err)
	}
	return walletName, filePath, nil
}

func main() {
	walletName, filePath, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := workerconfig.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := os.OpenFile(cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.SetFlags(log.Ldate | log.Ltime)

	log.Printf("Bitbar Minter Worker starting...")
	log.Printf("Wallet: %s, file: %s", walletName, filePath)
	log.Printf("Monitor: %s", cfg.ServerURL)
	log.Printf("Worker interval: %v", cfg.WorkerInterval())

	j, err := journal.Open(cfg.JournalPath, cfg.JournalRotateBytes)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer j.Close()

	mc := monitorclient.New(cfg.ServerURL, &http.Client{Timeout: cfg.UpstreamTimeout()})
	ex := executor.New(cfg.InscriptionCommandTemplate, cfg.MaxRetries, nil, j, mc)
	sch := scheduler.New(cfg.WorkerInterval(), cfg.InterDispatchDelay(), walletName, filePath, mc, ex)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	go sch.Run(ctx)

	introspection := workerapi.NewServer(ex, j)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: introspection.Handler(),
	}

	go func() {
		log.Printf("Introspection server listening on port %d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Introspection server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Printf("Shutting down introspection server...")
	httpServer.Shutdown(context.Background())
	log.Printf("Shutdown complete")
}
