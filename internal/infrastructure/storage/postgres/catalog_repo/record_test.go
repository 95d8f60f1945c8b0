package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repocatalog/internal/domain/filter"
)

func TestRecordRepo_PageQuery(t *testing.T) {
	repo := NewRecordRepo(nil)

	tests := []struct {
		name     string
		pred     filter.Predicate
		offset   int
		limit    int
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "match all",
			pred:     filter.Search(""),
			offset:   0,
			limit:    10,
			wantSQL:  "SELECT id, name, description, url FROM repositories ORDER BY id ASC LIMIT 10 OFFSET 0",
			wantArgs: nil,
		},
		{
			name:   "search term",
			pred:   filter.Search("go"),
			offset: 20,
			limit:  5,
			wantSQL: "SELECT id, name, description, url FROM repositories " +
				"WHERE (name ILIKE $1 ESCAPE '\\' OR description ILIKE $2 ESCAPE '\\') " +
				"ORDER BY id ASC LIMIT 5 OFFSET 20",
			wantArgs: []any{"%go%", "%go%"},
		},
		{
			name:   "wildcards are escaped",
			pred:   filter.Search("50%_off"),
			offset: 0,
			limit:  1,
			wantSQL: "SELECT id, name, description, url FROM repositories " +
				"WHERE (name ILIKE $1 ESCAPE '\\' OR description ILIKE $2 ESCAPE '\\') " +
				"ORDER BY id ASC LIMIT 1 OFFSET 0",
			wantArgs: []any{`%50\%\_off%`, `%50\%\_off%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.pageQuery(tt.pred, tt.offset, tt.limit).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestRecordRepo_CountQuery_SharesPredicate(t *testing.T) {
	repo := NewRecordRepo(nil)
	pred := filter.Search("lib")

	countSQL, countArgs, err := repo.countQuery(pred).ToSql()
	require.NoError(t, err)
	_, pageArgs, err := repo.pageQuery(pred, 0, 10).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT COUNT(*) FROM repositories WHERE (name ILIKE $1 ESCAPE '\\' OR description ILIKE $2 ESCAPE '\\')",
		countSQL)
	assert.Equal(t, pageArgs, countArgs)
}

func TestRecordRepo_Delete_SQL(t *testing.T) {
	repo := NewRecordRepo(nil)

	sql, args, err := repo.Builder().
		Delete(tableName).
		Where("id = ?", int64(42)).
		ToSql()
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM repositories WHERE id = $1", sql)
	assert.Equal(t, []any{int64(42)}, args)
}
