// Package storage opens the configured backend and exposes it through the
// domain ports.
package storage

import (
	"context"
	"fmt"
	"time"

	"repocatalog/internal/core/tx"
	"repocatalog/internal/domain/catalog"
	"repocatalog/internal/infrastructure/outbox"
	"repocatalog/internal/infrastructure/storage/postgres"
	"repocatalog/internal/infrastructure/storage/postgres/catalog_repo"
	"repocatalog/internal/infrastructure/storage/sqlite"
	"repocatalog/pkg/logger"
)

// Drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	Driver string

	// DSN is a Postgres connection string or a SQLite file path.
	DSN string

	MaxConns         int32
	StatementTimeout time.Duration

	NameCaseInsensitive bool
}

// Backend bundles the ports served by one database.
type Backend struct {
	Records   catalog.Store
	TxManager tx.ReadOnlyManager
	Outbox    outbox.Store

	close func()
}

// Close releases the underlying connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects to the configured backend and bootstraps its schema.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Backend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg, log)
	case DriverSQLite:
		return openSQLite(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg Config, log *logger.Logger) (*Backend, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DSN)
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.StatementTimeout > 0 {
		poolCfg.StatementTimeout = cfg.StatementTimeout
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.Bootstrap(ctx, pool, postgres.SchemaOptions{NameCaseInsensitive: cfg.NameCaseInsensitive}); err != nil {
		pool.Close()
		return nil, err
	}
	postgres.LogPoolStats(ctx, pool)
	log.Infow("postgres storage ready", "max_conns", poolCfg.MaxConns, "name_case_insensitive", cfg.NameCaseInsensitive)

	txm := postgres.NewTxManager(pool)
	return &Backend{
		Records:   catalog_repo.NewRecordRepo(txm),
		TxManager: txm,
		Outbox:    postgres.NewOutboxStore(txm),
		close:     pool.Close,
	}, nil
}

func openSQLite(ctx context.Context, cfg Config, log *logger.Logger) (*Backend, error) {
	db, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.DSN))
	if err != nil {
		return nil, err
	}
	if err := sqlite.Bootstrap(ctx, db, sqlite.SchemaOptions{NameCaseInsensitive: cfg.NameCaseInsensitive}); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Infow("sqlite storage ready", "path", cfg.DSN, "name_case_insensitive", cfg.NameCaseInsensitive)

	txm := sqlite.NewTxManager(db)
	return &Backend{
		Records:   sqlite.NewRecordRepo(txm),
		TxManager: txm,
		Outbox:    sqlite.NewOutboxStore(txm),
		close:     func() { _ = db.Close() },
	}, nil
}
