// Package outbox implements the transactional outbox used by the queued
// notification mode: pending notifications are written in the same
// transaction as the record and delivered later by a Relay.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"repocatalog/internal/domain/catalog"
)

// Status represents the state of an outbox message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// EventRepositoryCreated is the only event type emitted today.
const EventRepositoryCreated = "RepositoryCreated"

// Message represents a row in the outbox.
type Message struct {
	ID            string `db:"id"`
	AggregateType string `db:"aggregate_type"`
	AggregateID   int64  `db:"aggregate_id"`
	EventType     string `db:"event_type"`
	Payload       []byte `db:"payload"`
	RetryCount    int    `db:"retry_count"`
}

// Store persists outbox messages.
type Store interface {
	// Insert writes a pending message. It must join the transaction in ctx.
	Insert(ctx context.Context, msg Message, now time.Time) error

	// Claim leases up to limit due pending messages, oldest first.
	// Claimed messages are not due again until now+lease.
	Claim(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]Message, error)

	// MarkPublished marks a message as delivered.
	MarkPublished(ctx context.Context, id string, at time.Time) error

	// MarkRetry records a failed attempt and schedules the next one.
	MarkRetry(ctx context.Context, id string, lastErr string, next time.Time) error

	// MarkFailed records a failed attempt and stops retrying.
	MarkFailed(ctx context.Context, id string, lastErr string) error
}

// recordPayload is the JSON body of a RepositoryCreated message.
type recordPayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

func encodeRecord(rec *catalog.Record) ([]byte, error) {
	return json.Marshal(recordPayload{
		ID:          int64(rec.ID),
		Name:        rec.Name,
		Description: rec.Description,
		URL:         rec.URL,
	})
}

func decodeRecord(payload []byte) (*catalog.Record, error) {
	var p recordPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &catalog.Record{
		ID:          catalog.ID(p.ID),
		Name:        p.Name,
		Description: p.Description,
		URL:         p.URL,
	}, nil
}

// Compile-time check that Publisher implements catalog.NotificationQueue.
var _ catalog.NotificationQueue = (*Publisher)(nil)

// Publisher writes RepositoryCreated messages to the outbox.
type Publisher struct {
	store Store
	now   func() time.Time
}

// NewPublisher creates a new outbox publisher.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store, now: time.Now}
}

// Enqueue writes a pending notification for rec within the current transaction.
func (p *Publisher) Enqueue(ctx context.Context, rec *catalog.Record) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	msg := Message{
		ID:            uuid.New().String(),
		AggregateType: catalog.EntityName,
		AggregateID:   int64(rec.ID),
		EventType:     EventRepositoryCreated,
		Payload:       payload,
	}
	if err := p.store.Insert(ctx, msg, p.now().UTC()); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}
