package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"repocatalog/internal/infrastructure/outbox"
)

// Compile-time check that OutboxStore implements outbox.Store.
var _ outbox.Store = (*OutboxStore)(nil)

// OutboxStore keeps outbox messages in sys_outbox.
type OutboxStore struct {
	txManager *TxManager
}

// NewOutboxStore creates a new outbox store.
func NewOutboxStore(txManager *TxManager) *OutboxStore {
	return &OutboxStore{txManager: txManager}
}

// Insert writes a pending message within the current transaction.
func (s *OutboxStore) Insert(ctx context.Context, msg outbox.Message, now time.Time) error {
	tx := s.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox insert requires transaction context")
	}

	at := now.UnixMilli()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, next_retry_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, string(outbox.StatusPending), at, at)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return nil
}

// Claim leases due pending messages. The single connection makes the
// UPDATE ... RETURNING atomic with respect to other relays in the process.
func (s *OutboxStore) Claim(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]outbox.Message, error) {
	var messages []outbox.Message
	err := sqlscan.Select(ctx, s.txManager.GetQuerier(ctx), &messages, `
		UPDATE sys_outbox
		SET next_retry_at = ?
		WHERE id IN (
			SELECT id FROM sys_outbox
			WHERE status = ? AND next_retry_at <= ?
			ORDER BY created_at, id
			LIMIT ?
		)
		RETURNING id, aggregate_type, aggregate_id, event_type, payload, retry_count
	`, now.Add(lease).UnixMilli(), string(outbox.StatusPending), now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}

	return messages, nil
}

// MarkPublished marks a message as delivered.
func (s *OutboxStore) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := s.txManager.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE sys_outbox SET status = ?, published_at = ? WHERE id = ?
	`, string(outbox.StatusPublished), at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark outbox message published: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one.
func (s *OutboxStore) MarkRetry(ctx context.Context, id string, lastErr string, next time.Time) error {
	_, err := s.txManager.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?
	`, lastErr, next.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("schedule outbox retry: %w", err)
	}
	return nil
}

// MarkFailed records the final failed attempt.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string, lastErr string) error {
	_, err := s.txManager.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1, last_error = ?, status = ?
		WHERE id = ?
	`, lastErr, string(outbox.StatusFailed), id)
	if err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	return nil
}
