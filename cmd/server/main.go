// Package main is the entry point for the repository catalog API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"repocatalog/internal/app"
	"repocatalog/internal/config"
	v1 "repocatalog/internal/infrastructure/http/v1"
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
	log := a.Log

	log.Infow("starting repository catalog",
		"env", cfg.App.Env,
		"driver", cfg.Database.Driver,
		"notify_mode", cfg.Notify.Mode,
	)

	notifier := a.Notifier()
	service := a.Service(notifier)

	// --- Outbox relay ---
	var wg sync.WaitGroup
	if cfg.Notify.Mode == config.NotifyOutbox && cfg.Notify.Relay.InProcess {
		relay := a.Relay(notifier)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Service:        service,
		Logger:         log,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Development:    cfg.App.Development(),
	})

	// --- HTTP Server ---
	addr := ":" + strconv.Itoa(cfg.App.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	cancel()
	wg.Wait()
	log.Info("server stopped")
}
