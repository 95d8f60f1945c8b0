package outbox

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"repocatalog/internal/domain/catalog"
	"repocatalog/pkg/logger"
)

var tracer = otel.Tracer("repocatalog/outbox")

// RelayConfig configures polling and retry behaviour.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	Lease        time.Duration
}

// DefaultRelayConfig returns defaults suitable for a single relay.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval: time.Second,
		BatchSize:    50,
		MaxAttempts:  6,
		BackoffBase:  5 * time.Second,
		BackoffMax:   10 * time.Minute,
		Lease:        time.Minute,
	}
}

// Relay delivers pending outbox messages through a Notifier.
type Relay struct {
	store    Store
	notifier catalog.Notifier
	cfg      RelayConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewRelay creates a new outbox relay.
func NewRelay(store Store, notifier catalog.Notifier, cfg RelayConfig, log *logger.Logger) *Relay {
	return &Relay{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      log.WithComponent("outbox-relay"),
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.log.Infow("outbox relay started",
		"poll_interval", r.cfg.PollInterval,
		"batch_size", r.cfg.BatchSize,
		"max_attempts", r.cfg.MaxAttempts,
	)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			n, err := r.ProcessBatch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.log.Errorw("outbox batch failed", "error", err)
				}
				continue
			}
			if n > 0 {
				r.log.Debugw("processed outbox batch", "count", n)
			}
		}
	}
}

// ProcessBatch claims and handles due messages.
// Returns the number of messages delivered.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "outbox.batch")
	defer span.End()

	messages, err := r.store.Claim(ctx, r.cfg.BatchSize, r.now().UTC(), r.cfg.Lease)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return 0, err
	}
	span.SetAttributes(attribute.Int("outbox.claimed", len(messages)))

	delivered := 0
	for i := range messages {
		if err := r.processMessage(ctx, &messages[i]); err != nil {
			// Logged inside; keep going with the rest of the batch.
			continue
		}
		delivered++
	}
	return delivered, nil
}

// processMessage delivers a single message and records the outcome.
func (r *Relay) processMessage(ctx context.Context, msg *Message) error {
	ctx, span := tracer.Start(ctx, "outbox.message", trace.WithAttributes(
		attribute.String("outbox.id", msg.ID),
		attribute.Int64("outbox.aggregate_id", msg.AggregateID),
		attribute.Int("outbox.retry_count", msg.RetryCount),
	))
	defer span.End()

	rec, err := decodeRecord(msg.Payload)
	if err != nil {
		r.log.Errorw("dropping undecodable outbox message", "id", msg.ID, "error", err)
		if markErr := r.store.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
			return errors.Join(err, markErr)
		}
		return err
	}

	if err := r.notifier.Notify(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")

		attempts := msg.RetryCount + 1
		if attempts >= r.cfg.MaxAttempts {
			r.log.Errorw("outbox message exhausted retries",
				"id", msg.ID, "aggregate_id", msg.AggregateID, "attempts", attempts, "error", err)
			if markErr := r.store.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				return errors.Join(err, markErr)
			}
			return err
		}

		next := r.now().UTC().Add(Backoff(r.cfg.BackoffBase, r.cfg.BackoffMax, attempts))
		r.log.Warnw("outbox dispatch failed, retry scheduled",
			"id", msg.ID, "aggregate_id", msg.AggregateID, "attempts", attempts, "next_attempt_at", next, "error", err)
		if markErr := r.store.MarkRetry(ctx, msg.ID, err.Error(), next); markErr != nil {
			return errors.Join(err, markErr)
		}
		return err
	}

	return r.store.MarkPublished(ctx, msg.ID, r.now().UTC())
}

// Backoff returns base*2^(attempt-1), capped at ceiling.
func Backoff(base, ceiling time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling || d <= 0 {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}
