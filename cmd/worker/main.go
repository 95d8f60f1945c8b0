// Package main is the entry point for the outbox relay worker.
// It delivers queued creation notifications when notify.mode is "outbox"
// and the relay does not run inside the API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"repocatalog/internal/app"
	"repocatalog/internal/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("CATALOG_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()
	log := a.Log.WithComponent("worker")

	if cfg.Notify.Mode != config.NotifyOutbox {
		log.Warnw("notify.mode is not outbox, nothing will be enqueued", "mode", cfg.Notify.Mode)
	}
	if cfg.Notify.Relay.InProcess {
		log.Warn("notify.relay.in_process is set, the API server also runs a relay")
	}

	relay := a.Relay(a.Notifier())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}
