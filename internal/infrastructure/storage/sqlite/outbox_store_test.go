package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repocatalog/internal/infrastructure/outbox"
)

type messageState struct {
	Status     string  `db:"status"`
	RetryCount int     `db:"retry_count"`
	LastError  *string `db:"last_error"`
}

func loadState(t *testing.T, db *DB, id string) messageState {
	t.Helper()
	var st messageState
	err := db.QueryRowContext(context.Background(),
		`SELECT status, retry_count, last_error FROM sys_outbox WHERE id = ?`, id).
		Scan(&st.Status, &st.RetryCount, &st.LastError)
	require.NoError(t, err)
	return st
}

func insertMessage(t *testing.T, txm *TxManager, store *OutboxStore, id string, now time.Time) {
	t.Helper()
	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return store.Insert(ctx, outbox.Message{
			ID:            id,
			AggregateType: "repository",
			AggregateID:   7,
			EventType:     outbox.EventRepositoryCreated,
			Payload:       []byte(`{"id":7}`),
		}, now)
	})
	require.NoError(t, err)
}

func TestOutboxStore_InsertRequiresTransaction(t *testing.T) {
	_, txm := setupTestDB(t, SchemaOptions{})
	store := NewOutboxStore(txm)

	err := store.Insert(context.Background(), outbox.Message{ID: "m1"}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires transaction")
}

func TestOutboxStore_ClaimLeases(t *testing.T) {
	db, txm := setupTestDB(t, SchemaOptions{})
	store := NewOutboxStore(txm)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	insertMessage(t, txm, store, "m1", now)
	insertMessage(t, txm, store, "m2", now.Add(time.Second))

	claimed, err := store.Claim(ctx, 10, now.Add(time.Second), time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, int64(7), claimed[0].AggregateID)
	assert.Equal(t, []byte(`{"id":7}`), claimed[0].Payload)

	again, err := store.Claim(ctx, 10, now.Add(30*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again, "leased messages are not due until the lease expires")

	expired, err := store.Claim(ctx, 10, now.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Len(t, expired, 2, "an expired lease makes messages due again")

	assert.Equal(t, string(outbox.StatusPending), loadState(t, db, "m1").Status)
}

func TestOutboxStore_ClaimRespectsLimitAndDueTime(t *testing.T) {
	_, txm := setupTestDB(t, SchemaOptions{})
	store := NewOutboxStore(txm)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	insertMessage(t, txm, store, "m1", now)
	insertMessage(t, txm, store, "m2", now)
	insertMessage(t, txm, store, "future", now.Add(time.Hour))

	claimed, err := store.Claim(ctx, 1, now, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	claimed, err = store.Claim(ctx, 10, now, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.NotEqual(t, "future", claimed[0].ID)
}

func TestOutboxStore_MarkTransitions(t *testing.T) {
	db, txm := setupTestDB(t, SchemaOptions{})
	store := NewOutboxStore(txm)
	ctx := context.Background()
	now := time.Now().UTC()

	insertMessage(t, txm, store, "ok", now)
	insertMessage(t, txm, store, "retry", now)
	insertMessage(t, txm, store, "dead", now)

	require.NoError(t, store.MarkPublished(ctx, "ok", now))
	require.NoError(t, store.MarkRetry(ctx, "retry", "dispatch timeout", now.Add(time.Hour)))
	require.NoError(t, store.MarkFailed(ctx, "dead", "dispatch remote"))

	assert.Equal(t, string(outbox.StatusPublished), loadState(t, db, "ok").Status)

	retry := loadState(t, db, "retry")
	assert.Equal(t, string(outbox.StatusPending), retry.Status)
	assert.Equal(t, 1, retry.RetryCount)
	require.NotNil(t, retry.LastError)
	assert.Equal(t, "dispatch timeout", *retry.LastError)

	dead := loadState(t, db, "dead")
	assert.Equal(t, string(outbox.StatusFailed), dead.Status)
	assert.Equal(t, 1, dead.RetryCount)

	claimed, err := store.Claim(ctx, 10, now.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed, "published, failed and rescheduled messages are not due")
}
