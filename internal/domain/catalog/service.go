package catalog

import (
	"context"
	"errors"
	"fmt"

	"repocatalog/internal/core/apperror"
	"repocatalog/internal/core/tx"
	"repocatalog/pkg/logger"
)

// Policy holds request validation bounds.
type Policy struct {
	DefaultLimit   int
	MaxLimit       int
	MaxQueryLength int
}

// DefaultPolicy returns the bounds used by the HTTP surface.
func DefaultPolicy() Policy {
	return Policy{
		DefaultLimit:   10,
		MaxLimit:       100,
		MaxQueryLength: 100,
	}
}

// ServiceConfig configures the registry service.
type ServiceConfig struct {
	Store     Store
	TxManager tx.ReadOnlyManager

	// Notifier is called after a synchronous insert. Nil means NopNotifier.
	Notifier Notifier

	// Queue switches Create to the outbox mode: the record and its pending
	// notification are written in one transaction and Notifier is not called.
	Queue NotificationQueue

	Policy Policy

	// Logger receives domain events. Nil means logger.Default().
	Logger *logger.Logger
}

// Service orchestrates create, list and delete over the store, the query
// engine and the notifier. It holds no state of its own.
type Service struct {
	store    Store
	txm      tx.ReadOnlyManager
	query    *QueryEngine
	notifier Notifier
	queue    NotificationQueue
	policy   Policy
	log      *logger.Logger
}

// NewService creates a new registry service.
func NewService(cfg ServiceConfig) *Service {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		store:    cfg.Store,
		txm:      cfg.TxManager,
		query:    NewQueryEngine(cfg.Store, cfg.TxManager),
		notifier: notifier,
		queue:    cfg.Queue,
		policy:   cfg.Policy,
		log:      log.WithComponent("catalog"),
	}
}

// Policy returns the validation bounds in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// normalizeStoreErr keeps domain errors and turns anything else into a store fault.
func (s *Service) normalizeStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewStoreFault(err).WithDetail("entity", EntityName)
}

// ListRequest describes a listing window.
type ListRequest struct {
	Query  string
	Offset int
	Limit  int
}

// List validates the window and returns matching records with their total.
func (s *Service) List(ctx context.Context, req ListRequest) (Page, error) {
	if req.Offset < 0 {
		return Page{}, apperror.NewValidation("skip must be greater than or equal to 0").
			WithDetail("field", "skip").
			WithDetail("value", req.Offset)
	}
	if req.Limit < 1 || req.Limit > s.policy.MaxLimit {
		return Page{}, apperror.NewValidation(fmt.Sprintf("limit must be between 1 and %d", s.policy.MaxLimit)).
			WithDetail("field", "limit").
			WithDetail("value", req.Limit)
	}
	if n := len([]rune(req.Query)); n > s.policy.MaxQueryLength {
		return Page{}, apperror.NewValidation(fmt.Sprintf("query must be at most %d characters", s.policy.MaxQueryLength)).
			WithDetail("field", "query").
			WithDetail("length", n)
	}

	page, err := s.query.Search(ctx, req.Query, req.Offset, req.Limit)
	if err != nil {
		return Page{}, s.normalizeStoreErr(err)
	}
	return page, nil
}

// Create validates and persists a record, then dispatches its notification.
//
// In synchronous mode a failed dispatch is reported as CodeDispatch while the
// record stays persisted; the returned record is non-nil in that case.
func (s *Service) Create(ctx context.Context, in NewRecord) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if s.queue != nil {
		return s.createQueued(ctx, in)
	}

	rec, err := s.store.Insert(ctx, in)
	if err != nil {
		if apperror.IsDuplicate(err) {
			s.log.WithContext(ctx).Infow("duplicate repository rejected", "name", in.Name)
		}
		return nil, s.normalizeStoreErr(err)
	}
	s.log.WithContext(ctx).Infow("repository created", "id", rec.ID, "name", rec.Name)

	if err := s.notifier.Notify(ctx, rec); err != nil {
		reason := string(DispatchTransport)
		var dispatchErr *DispatchError
		if errors.As(err, &dispatchErr) {
			reason = string(dispatchErr.Kind)
		}
		s.log.WithContext(ctx).Warnw("repository notification failed",
			"id", rec.ID,
			"reason", reason,
			"error", err,
		)
		return rec, apperror.NewDispatch(reason, err).
			WithDetail("entity", EntityName).
			WithDetail("id", rec.ID)
	}

	return rec, nil
}

// createQueued writes the record and its pending notification atomically.
func (s *Service) createQueued(ctx context.Context, in NewRecord) (*Record, error) {
	var rec *Record
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		created, err := s.store.Insert(ctx, in)
		if err != nil {
			return err
		}
		if err := s.queue.Enqueue(ctx, created); err != nil {
			return fmt.Errorf("enqueue notification: %w", err)
		}
		rec = created
		return nil
	})
	if err != nil {
		if apperror.IsDuplicate(err) {
			s.log.WithContext(ctx).Infow("duplicate repository rejected", "name", in.Name)
		}
		return nil, s.normalizeStoreErr(err)
	}

	s.log.WithContext(ctx).Infow("repository created", "id", rec.ID, "name", rec.Name, "notification", "queued")
	return rec, nil
}

// Delete removes the record with the given id or fails with CodeNotFound.
func (s *Service) Delete(ctx context.Context, id ID) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return s.normalizeStoreErr(err)
	}

	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return s.normalizeStoreErr(err)
	}
	if !removed {
		// Lost a race with a concurrent delete.
		return apperror.NewNotFound(EntityName, id)
	}

	s.log.WithContext(ctx).Infow("repository deleted", "id", id)
	return nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return apperror.NewStoreFault(err)
	}
	return nil
}
