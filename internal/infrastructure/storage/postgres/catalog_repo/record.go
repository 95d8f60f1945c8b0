// Package catalog_repo provides the PostgreSQL implementation of the
// repository catalog store.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"repocatalog/internal/core/apperror"
	"repocatalog/internal/domain/catalog"
	"repocatalog/internal/domain/filter"
	"repocatalog/internal/infrastructure/storage/postgres"
)

const tableName = "repositories"

var selectCols = []string{"id", "name", "description", "url"}

// Compile-time check that RecordRepo implements catalog.Store.
var _ catalog.Store = (*RecordRepo)(nil)

// RecordRepo stores repository records in PostgreSQL.
// Every statement runs on the transaction carried in ctx when there is one.
type RecordRepo struct {
	txm *postgres.TxManager
}

// NewRecordRepo creates a new record repository.
func NewRecordRepo(txm *postgres.TxManager) *RecordRepo {
	return &RecordRepo{txm: txm}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *RecordRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// applyPredicate adds the search condition. Paging and counting both go
// through here so they cannot disagree.
func applyPredicate(q squirrel.SelectBuilder, pred filter.Predicate) squirrel.SelectBuilder {
	if pred.MatchesAll() {
		return q
	}
	pattern := pred.LikePattern()
	return q.Where(squirrel.Or{
		squirrel.Expr("name ILIKE ? ESCAPE '"+filter.EscapeChar+"'", pattern),
		squirrel.Expr("description ILIKE ? ESCAPE '"+filter.EscapeChar+"'", pattern),
	})
}

func (r *RecordRepo) pageQuery(pred filter.Predicate, offset, limit int) squirrel.SelectBuilder {
	q := r.Builder().
		Select(selectCols...).
		From(tableName)
	return applyPredicate(q, pred).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
}

func (r *RecordRepo) countQuery(pred filter.Predicate) squirrel.SelectBuilder {
	q := r.Builder().
		Select("COUNT(*)").
		From(tableName)
	return applyPredicate(q, pred)
}

// Insert adds a record. The unique index on name decides conflicts.
func (r *RecordRepo) Insert(ctx context.Context, in catalog.NewRecord) (*catalog.Record, error) {
	q := r.Builder().
		Insert(tableName).
		Columns("name", "description", "url").
		Values(in.Name, in.Description, in.URL).
		Suffix("RETURNING id, name, description, url")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	rec := &catalog.Record{}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), rec, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, apperror.NewDuplicate(catalog.EntityName, "name", in.Name).WithCause(err)
		}
		return nil, fmt.Errorf("insert %s: %w", tableName, err)
	}

	return rec, nil
}

// Get retrieves a record by id.
func (r *RecordRepo) Get(ctx context.Context, id catalog.ID) (*catalog.Record, error) {
	q := r.Builder().
		Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{"id": id}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rec := &catalog.Record{}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(catalog.EntityName, id)
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}

	return rec, nil
}

// Delete performs physical removal and reports whether a row was removed.
func (r *RecordRepo) Delete(ctx context.Context, id catalog.ID) (bool, error) {
	q := r.Builder().
		Delete(tableName).
		Where(squirrel.Eq{"id": id})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("execute delete %s: %w", tableName, err)
	}

	return result.RowsAffected() > 0, nil
}

// Page returns one window of matches ordered by id.
func (r *RecordRepo) Page(ctx context.Context, pred filter.Predicate, offset, limit int) ([]*catalog.Record, error) {
	sql, args, err := r.pageQuery(pred, offset, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []*catalog.Record
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	return records, nil
}

// Count returns the number of matches.
func (r *RecordRepo) Count(ctx context.Context, pred filter.Predicate) (int64, error) {
	sql, args, err := r.countQuery(pred).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	return total, nil
}

// Ping checks the pool.
func (r *RecordRepo) Ping(ctx context.Context) error {
	return r.txm.Ping(ctx)
}
