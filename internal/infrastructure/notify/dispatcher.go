// Package notify sends creation notifications to a chat-completion style
// endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"repocatalog/internal/domain/catalog"
	"repocatalog/pkg/logger"
)

var tracer = otel.Tracer("repocatalog/notify")

// IdempotencyHeader carries catalog.IdempotencyKey on every request.
const IdempotencyHeader = "Idempotency-Key"

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// Config configures the dispatcher.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Compile-time check that Dispatcher implements catalog.Notifier.
var _ catalog.Notifier = (*Dispatcher)(nil)

// Dispatcher is a catalog.Notifier backed by an HTTP endpoint.
// It performs exactly one attempt per call.
type Dispatcher struct {
	cfg    Config
	client *http.Client
}

// NewDispatcher creates a dispatcher. A nil client uses a default one.
func NewDispatcher(cfg Config, client *http.Client) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{cfg: cfg, client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (d *Dispatcher) buildRequest(rec *catalog.Record) chatRequest {
	return chatRequest{
		Model: d.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You summarize newly cataloged source repositories."},
			{Role: "user", Content: fmt.Sprintf(
				"A repository was added to the catalog.\nName: %s\nDescription: %s\nURL: %s",
				rec.Name, rec.Description, rec.URL)},
		},
	}
}

// Notify sends one notification for rec, bounded by the configured timeout.
func (d *Dispatcher) Notify(ctx context.Context, rec *catalog.Record) error {
	ctx, span := tracer.Start(ctx, "notify.dispatch", trace.WithAttributes(
		attribute.Int64("repository.id", int64(rec.ID)),
	))
	defer span.End()

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	err := d.send(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
	}
	return err
}

func (d *Dispatcher) send(ctx context.Context, rec *catalog.Record) error {
	body, err := json.Marshal(d.buildRequest(rec))
	if err != nil {
		return &catalog.DispatchError{Kind: catalog.DispatchTransport, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &catalog.DispatchError{Kind: catalog.DispatchTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, catalog.IdempotencyKey(rec))
	if d.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return &catalog.DispatchError{Kind: classify(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &catalog.DispatchError{
			Kind: catalog.DispatchRemote,
			Err:  fmt.Errorf("endpoint returned %s: %s", resp.Status, bytes.TrimSpace(snippet)),
		}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// Reading the body can still time out after the headers arrived.
		if kind := classify(ctx, err); kind == catalog.DispatchTimeout {
			return &catalog.DispatchError{Kind: kind, Err: err}
		}
		// Only the success status matters; the content is informational.
		logger.Debug(ctx, "notification response not decodable", "id", rec.ID, "error", err)
		return nil
	}
	if len(out.Choices) > 0 {
		logger.Debug(ctx, "notification delivered", "id", rec.ID, "reply", out.Choices[0].Message.Content)
	}
	return nil
}

// classify maps a client error to a dispatch failure kind.
func classify(ctx context.Context, err error) catalog.DispatchKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return catalog.DispatchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return catalog.DispatchTimeout
	}
	return catalog.DispatchTransport
}
