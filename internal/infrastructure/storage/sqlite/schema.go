package sqlite

import (
	"context"
	"fmt"
)

// SchemaOptions controls the bootstrap DDL.
type SchemaOptions struct {
	// NameCaseInsensitive makes the name unique index fold case.
	NameCaseInsensitive bool
}

// AUTOINCREMENT keeps ids of deleted rows from being handed out again.
const repositoriesDDL = `
CREATE TABLE IF NOT EXISTS repositories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL CHECK (name <> ''),
	description TEXT NOT NULL,
	url         TEXT NOT NULL
)`

// Times are unix milliseconds.
const outboxDDL = `
CREATE TABLE IF NOT EXISTS sys_outbox (
	id             TEXT PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   INTEGER NOT NULL,
	event_type     TEXT NOT NULL,
	payload        BLOB NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	last_error     TEXT,
	next_retry_at  INTEGER NOT NULL,
	created_at     INTEGER NOT NULL,
	published_at   INTEGER
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
			`CREATE UNIQUE INDEX IF NOT EXISTS ` + nameIndexCI + ` ON repositories (` + lowerFunc + `(name))`,
			`DROP INDEX IF EXISTS ` + nameIndex,
		}
	}
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + nameIndex + ` ON repositories (name)`,
		`DROP INDEX IF EXISTS ` + nameIndexCI,
	}
}

// Bootstrap creates tables and indexes if they do not exist and applies
// the name case policy. It runs in one transaction.
func Bootstrap(ctx context.Context, db *DB, opts SchemaOptions) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, repositoriesDDL); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	for _, stmt := range nameIndexDDL(opts) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("apply case-insensitive name index: existing names differ only by case: %w", err)
			}
			return fmt.Errorf("apply name index: %w", err)
		}
	}
	for _, stmt := range []string{outboxDDL, outboxIndexDDL} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
