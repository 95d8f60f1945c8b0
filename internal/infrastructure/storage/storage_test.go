package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repocatalog/internal/domain/catalog"
	"repocatalog/internal/domain/filter"
	"repocatalog/pkg/logger"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	backend, err := Open(ctx, Config{Driver: DriverSQLite, DSN: path}, logger.Nop())
	require.NoError(t, err)

	rec, err := backend.Records.Insert(ctx, catalog.NewRecord{Name: "alpha", Description: "d", URL: "u"})
	require.NoError(t, err)
	require.NoError(t, backend.Records.Ping(ctx))
	backend.Close()

	// Bootstrap is idempotent and data survives a reopen.
	backend, err = Open(ctx, Config{Driver: DriverSQLite, DSN: path}, logger.Nop())
	require.NoError(t, err)
	defer backend.Close()

	found, err := backend.Records.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", found.Name)

	total, err := backend.Records.Count(ctx, filter.Search(""))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"}, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}
