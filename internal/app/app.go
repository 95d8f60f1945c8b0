// Package app wires configuration, logging, storage and notification
// into the components shared by the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"net/http"

	"repocatalog/internal/config"
	"repocatalog/internal/domain/catalog"
	"repocatalog/internal/infrastructure/notify"
	"repocatalog/internal/infrastructure/outbox"
	"repocatalog/internal/infrastructure/storage"
	"repocatalog/pkg/logger"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Backend *storage.Backend
}

// New creates the logger and opens the configured backend.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.App.Development(),
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	backend, err := storage.Open(ctx, storage.Config{
		Driver:              cfg.Database.Driver,
		DSN:                 cfg.Database.DSN,
		MaxConns:            cfg.Database.MaxConns,
		StatementTimeout:    cfg.Database.StatementTimeout,
		NameCaseInsensitive: cfg.Catalog.NameCaseInsensitive,
	}, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	return &App{Config: cfg, Log: log, Backend: backend}, nil
}

// Close releases the backend and flushes the logger.
func (a *App) Close() {
	a.Backend.Close()
	_ = a.Log.Sync()
}

// Notifier returns the dispatcher for the configured mode.
func (a *App) Notifier() catalog.Notifier {
	n := a.Config.Notify
	if n.Mode == config.NotifyDisabled {
		return catalog.NopNotifier
	}
	if n.APIKey == "" {
		a.Log.Warnw("notify.api_key is empty, the endpoint will likely reject requests", "endpoint", n.Endpoint)
	}
	return notify.NewDispatcher(notify.Config{
		Endpoint: n.Endpoint,
		APIKey:   n.APIKey,
		Model:    n.Model,
		Timeout:  n.Timeout,
	}, &http.Client{})
}

// Service builds the registry service. In outbox mode creations enqueue
// their notification instead of calling notifier.
func (a *App) Service(notifier catalog.Notifier) *catalog.Service {
	svcCfg := catalog.ServiceConfig{
		Store:     a.Backend.Records,
		TxManager: a.Backend.TxManager,
		Notifier:  notifier,
		Policy: catalog.Policy{
			DefaultLimit:   a.Config.Catalog.DefaultLimit,
			MaxLimit:       a.Config.Catalog.MaxLimit,
			MaxQueryLength: a.Config.Catalog.MaxQueryLength,
		},
		Logger: a.Log,
	}
	if a.Config.Notify.Mode == config.NotifyOutbox {
		svcCfg.Queue = outbox.NewPublisher(a.Backend.Outbox)
	}
	return catalog.NewService(svcCfg)
}

// Relay builds the outbox relay delivering through notifier.
func (a *App) Relay(notifier catalog.Notifier) *outbox.Relay {
	r := a.Config.Notify.Relay
	return outbox.NewRelay(a.Backend.Outbox, notifier, outbox.RelayConfig{
		PollInterval: r.PollInterval,
		BatchSize:    r.BatchSize,
		MaxAttempts:  r.MaxAttempts,
		BackoffBase:  r.BackoffBase,
		BackoffMax:   r.BackoffMax,
		Lease:        r.Lease,
	}, a.Log)
}
