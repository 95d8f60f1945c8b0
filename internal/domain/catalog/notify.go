package catalog

import (
	"context"
	"fmt"
)

// Notifier delivers a best-effort description of a newly created record.
// It performs no retries and never touches the store.
type Notifier interface {
	Notify(ctx context.Context, rec *Record) error
}

// DispatchKind classifies a notification failure.
type DispatchKind string

const (
	DispatchTimeout   DispatchKind = "timeout"
	DispatchTransport DispatchKind = "transport"
	DispatchRemote    DispatchKind = "remote"
)

// DispatchError is returned by Notifier implementations.
type DispatchError struct {
	Kind DispatchKind
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, rec *Record) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, rec *Record) error {
	return f(ctx, rec)
}

// NopNotifier accepts every notification without sending anything.
var NopNotifier Notifier = NotifierFunc(func(context.Context, *Record) error { return nil })

// IdempotencyKey identifies the creation notification of a record so that
// receivers can drop duplicates.
func IdempotencyKey(rec *Record) string {
	return fmt.Sprintf("%s-%d-created", EntityName, rec.ID)
}
