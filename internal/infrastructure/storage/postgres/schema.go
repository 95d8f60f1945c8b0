package postgres

import (
	"context"
	"fmt"
)

// SchemaOptions controls the bootstrap DDL.
type SchemaOptions struct {
	// NameCaseInsensitive makes the name unique index fold case.
	NameCaseInsensitive bool
}

const repositoriesDDL = `
CREATE TABLE IF NOT EXISTS repositories (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name        TEXT NOT NULL CHECK (name <> ''),
	description TEXT NOT NULL,
	url         TEXT NOT NULL
)`

const outboxDDL = `
CREATE TABLE IF NOT EXISTS sys_outbox (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   BIGINT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	retry_count    INT NOT NULL DEFAULT 0,
	last_error     TEXT,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	published_at   TIMESTAMPTZ
)`

const outboxIndexDDL = `CREATE INDEX IF NOT EXISTS ix_sys_outbox_due ON sys_outbox (status, next_retry_at)`

const (
	nameIndex   = "ux_repositories_name"
	nameIndexCI = "ux_repositories_name_ci"
)

// nameIndexDDL leaves exactly one unique index on name. The configured
// index is created before the other one is dropped, so a failed create
// keeps the previous policy in force.
func nameIndexDDL(opts SchemaOptions) []string {
	if opts.NameCaseInsensitive {
		return []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS ` + nameIndexCI + ` ON repositories (lower(name))`,
			`DROP INDEX IF EXISTS ` + nameIndex,
		}
	}
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + nameIndex + ` ON repositories (name)`,
		`DROP INDEX IF EXISTS ` + nameIndexCI,
	}
}

// Bootstrap creates tables and indexes if they do not exist and applies
// the name case policy. It runs in one transaction and is not a
// migration mechanism.
func Bootstrap(ctx context.Context, pool *Pool, opts SchemaOptions) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, repositoriesDDL); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	for _, stmt := range nameIndexDDL(opts) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("apply case-insensitive name index: existing names differ only by case: %w", err)
			}
			return fmt.Errorf("apply name index: %w", err)
		}
	}
	for _, stmt := range []string{outboxDDL, outboxIndexDDL} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
