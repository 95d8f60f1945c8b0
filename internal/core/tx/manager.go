// Package tx provides transaction management abstractions.
// Domain code depends on these interfaces; the storage adapters in
// infrastructure/storage implement them.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with snapshot reads.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction. Every statement
	// issued through the context observes the same snapshot.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
