package catalog

import (
	"context"

	"repocatalog/internal/domain/filter"
)

// Store owns the record set. It is the only component that mutates it.
//
// Implementations must honor the transaction carried in ctx (if any) so
// that page and count can share one snapshot.
type Store interface {
	// Insert atomically checks name uniqueness and inserts.
	// A name conflict is reported as an apperror with CodeDuplicate,
	// translated from the storage engine's unique-index violation.
	Insert(ctx context.Context, rec NewRecord) (*Record, error)

	// Get returns the live record with the given id or a CodeNotFound error.
	Get(ctx context.Context, id ID) (*Record, error)

	// Delete removes the record and reports whether a row was removed.
	Delete(ctx context.Context, id ID) (bool, error)

	// Page returns at most limit matches after skipping offset, by id ascending.
	Page(ctx context.Context, pred filter.Predicate, offset, limit int) ([]*Record, error)

	// Count returns the number of live records matching pred.
	Count(ctx context.Context, pred filter.Predicate) (int64, error)

	// Ping checks that storage is reachable.
	Ping(ctx context.Context) error
}

// NotificationQueue persists a pending notification for a record.
// Enqueue must run inside the transaction that inserted the record.
type NotificationQueue interface {
	Enqueue(ctx context.Context, rec *Record) error
}
