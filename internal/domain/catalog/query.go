package catalog

import (
	"context"
	"fmt"

	"repocatalog/internal/core/tx"
	"repocatalog/internal/domain/filter"
)

// QueryEngine turns a search term and a window into a page plus total.
// Both are computed from one predicate inside one read-only snapshot.
type QueryEngine struct {
	store Store
	txm   tx.ReadOnlyManager
}

// NewQueryEngine creates a query engine.
func NewQueryEngine(store Store, txm tx.ReadOnlyManager) *QueryEngine {
	return &QueryEngine{store: store, txm: txm}
}

// Search returns matches for term in [offset, offset+limit) and the total match count.
// Arguments are not clamped; callers validate them.
func (e *QueryEngine) Search(ctx context.Context, term string, offset, limit int) (Page, error) {
	pred := filter.Search(term)

	var page Page
	err := e.txm.ReadOnly(ctx, func(ctx context.Context) error {
		records, err := e.store.Page(ctx, pred, offset, limit)
		if err != nil {
			return fmt.Errorf("page: %w", err)
		}
		total, err := e.store.Count(ctx, pred)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		page = Page{Records: records, Total: total}
		return nil
	})
	if err != nil {
		return Page{}, err
	}

	if page.Records == nil {
		page.Records = []*Record{}
	}
	return page, nil
}
