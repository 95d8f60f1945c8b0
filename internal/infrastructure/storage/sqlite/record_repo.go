package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"repocatalog/internal/core/apperror"
	"repocatalog/internal/domain/catalog"
	"repocatalog/internal/domain/filter"
)

const recordsTable = "repositories"

var recordCols = []string{"id", "name", "description", "url"}

// Compile-time check that RecordRepo implements catalog.Store.
var _ catalog.Store = (*RecordRepo)(nil)

// RecordRepo stores repository records in SQLite.
//
// Search lowers both sides with ulower, so matching folds Unicode case
// the same way filter.Predicate.Matches does.
type RecordRepo struct {
	txm *TxManager
}

// NewRecordRepo creates a new record repository.
func NewRecordRepo(txm *TxManager) *RecordRepo {
	return &RecordRepo{txm: txm}
}

// Builder returns a new squirrel builder with SQLite placeholder format.
func (r *RecordRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

func applyPredicate(q squirrel.SelectBuilder, pred filter.Predicate) squirrel.SelectBuilder {
	if pred.MatchesAll() {
		return q
	}
	pattern := strings.ToLower(pred.LikePattern())
	return q.Where(squirrel.Or{
		squirrel.Expr(lowerFunc+"(name) LIKE ? ESCAPE '"+filter.EscapeChar+"'", pattern),
		squirrel.Expr(lowerFunc+"(description) LIKE ? ESCAPE '"+filter.EscapeChar+"'", pattern),
	})
}

func (r *RecordRepo) pageQuery(pred filter.Predicate, offset, limit int) squirrel.SelectBuilder {
	q := r.Builder().
		Select(recordCols...).
		From(recordsTable)
	return applyPredicate(q, pred).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
}

func (r *RecordRepo) countQuery(pred filter.Predicate) squirrel.SelectBuilder {
	q := r.Builder().
		Select("COUNT(*)").
		From(recordsTable)
	return applyPredicate(q, pred)
}

// Insert adds a record. The unique index on name decides conflicts.
func (r *RecordRepo) Insert(ctx context.Context, in catalog.NewRecord) (*catalog.Record, error) {
	q := r.Builder().
		Insert(recordsTable).
		Columns("name", "description", "url").
		Values(in.Name, in.Description, in.URL).
		Suffix("RETURNING id, name, description, url")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	rec := &catalog.Record{}
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), rec, query, args...); err != nil {
		if IsUniqueViolation(err) {
			return nil, apperror.NewDuplicate(catalog.EntityName, "name", in.Name).WithCause(err)
		}
		return nil, fmt.Errorf("insert %s: %w", recordsTable, err)
	}

	return rec, nil
}

// Get retrieves a record by id.
func (r *RecordRepo) Get(ctx context.Context, id catalog.ID) (*catalog.Record, error) {
	q := r.Builder().
		Select(recordCols...).
		From(recordsTable).
		Where(squirrel.Eq{"id": int64(id)}).
		Limit(1)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rec := &catalog.Record{}
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), rec, query, args...); err != nil {
		if sqlscan.NotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound(catalog.EntityName, id)
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}

	return rec, nil
}

// Delete performs physical removal and reports whether a row was removed.
func (r *RecordRepo) Delete(ctx context.Context, id catalog.ID) (bool, error) {
	q := r.Builder().
		Delete(recordsTable).
		Where(squirrel.Eq{"id": int64(id)})

	query, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("execute delete %s: %w", recordsTable, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Page returns one window of matches ordered by id.
func (r *RecordRepo) Page(ctx context.Context, pred filter.Predicate, offset, limit int) ([]*catalog.Record, error) {
	query, args, err := r.pageQuery(pred, offset, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []*catalog.Record
	if err := sqlscan.Select(ctx, r.txm.GetQuerier(ctx), &records, query, args...); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	return records, nil
}

// Count returns the number of matches.
func (r *RecordRepo) Count(ctx context.Context, pred filter.Predicate) (int64, error) {
	query, args, err := r.countQuery(pred).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	if err := r.txm.GetQuerier(ctx).QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	return total, nil
}

// Ping checks the database.
func (r *RecordRepo) Ping(ctx context.Context) error {
	return r.txm.Ping(ctx)
}
