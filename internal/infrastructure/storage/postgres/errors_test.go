package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "ux_repositories_name"}
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert repositories: %w", unique)))
	assert.False(t, IsUniqueViolation(fk))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestNameIndexDDL(t *testing.T) {
	tests := []struct {
		name   string
		opts   SchemaOptions
		create string
		drop   string
	}{
		{"case sensitive", SchemaOptions{}, "ux_repositories_name ON repositories (name)", "DROP INDEX IF EXISTS ux_repositories_name_ci"},
		{"case insensitive", SchemaOptions{NameCaseInsensitive: true}, "ux_repositories_name_ci ON repositories (lower(name))", "DROP INDEX IF EXISTS ux_repositories_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts := nameIndexDDL(tt.opts)
			require.Len(t, stmts, 2)
			assert.Contains(t, stmts[0], "CREATE UNIQUE INDEX IF NOT EXISTS "+tt.create)
			assert.Equal(t, tt.drop, stmts[1], "the other policy's index is dropped after the create")
		})
	}
}

func TestSnapshotTxOptions(t *testing.T) {
	opts := SnapshotTxOptions()
	assert.Equal(t, "repeatable read", string(opts.IsolationLevel))
	assert.Equal(t, "read only", string(opts.AccessMode))
}
