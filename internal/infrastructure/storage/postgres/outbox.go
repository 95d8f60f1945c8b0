package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

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
// MUST be called inside a transaction context.
func (s *OutboxStore) Insert(ctx context.Context, msg outbox.Message, now time.Time) error {
	tx := s.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox insert requires transaction context")
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, next_retry_at, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $7)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, string(outbox.StatusPending), now)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return nil
}

// Claim leases due pending messages. SKIP LOCKED lets several relays
// poll the same table without handing out a message twice.
func (s *OutboxStore) Claim(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]outbox.Message, error) {
	var messages []outbox.Message
	err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &messages, `
		UPDATE sys_outbox
		SET next_retry_at = $1
		WHERE id IN (
			SELECT id FROM sys_outbox
			WHERE status = $2 AND next_retry_at <= $3
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id::text AS id, aggregate_type, aggregate_id, event_type, payload, retry_count
	`, now.Add(lease), string(outbox.StatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}

	return messages, nil
}

// MarkPublished marks a message as delivered.
func (s *OutboxStore) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3::uuid
	`, string(outbox.StatusPublished), at, id)
	if err != nil {
		return fmt.Errorf("mark outbox message published: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one.
func (s *OutboxStore) MarkRetry(ctx context.Context, id string, lastErr string, next time.Time) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1,
		    last_error = $1,
		    next_retry_at = $2
		WHERE id = $3::uuid
	`, lastErr, next, id)
	if err != nil {
		return fmt.Errorf("schedule outbox retry: %w", err)
	}
	return nil
}

// MarkFailed records the final failed attempt.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string, lastErr string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1,
		    last_error = $1,
		    status = $2
		WHERE id = $3::uuid
	`, lastErr, string(outbox.StatusFailed), id)
	if err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	return nil
}
