package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"repocatalog/internal/core/apperror"
	"repocatalog/internal/domain/catalog"
	"repocatalog/internal/infrastructure/outbox"
	"repocatalog/internal/infrastructure/storage"
	"repocatalog/pkg/logger"
)

// fakeNotifier records calls and returns err.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []*catalog.Record
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, rec *catalog.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rec)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func openBackend(t testing.TB) *storage.Backend {
	t.Helper()
	backend, err := storage.Open(context.Background(), storage.Config{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "catalog.db"),
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(backend.Close)
	return backend
}

func newService(t testing.TB, notifier catalog.Notifier) (*catalog.Service, *storage.Backend) {
	t.Helper()
	backend := openBackend(t)
	svc := catalog.NewService(catalog.ServiceConfig{
		Store:     backend.Records,
		TxManager: backend.TxManager,
		Notifier:  notifier,
		Policy:    catalog.DefaultPolicy(),
		Logger:    logger.Nop(),
	})
	return svc, backend
}

func create(t testing.TB, svc *catalog.Service, name, description string) *catalog.Record {
	t.Helper()
	rec, err := svc.Create(context.Background(), catalog.NewRecord{
		Name:        name,
		Description: description,
		URL:         "http://" + name,
	})
	require.NoError(t, err)
	return rec
}

func names(records []*catalog.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func TestService_Create_ThenDuplicate(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, _ := newService(t, notifier)
	ctx := context.Background()

	rec, err := svc.Create(ctx, catalog.NewRecord{Name: "alpha", Description: "test repo", URL: "http://a"})
	require.NoError(t, err)
	assert.Equal(t, catalog.ID(1), rec.ID)
	assert.Equal(t, 1, notifier.count())

	_, err = svc.Create(ctx, catalog.NewRecord{Name: "alpha", Description: "other", URL: "http://b"})
	require.Error(t, err)
	assert.True(t, apperror.IsDuplicate(err))
	assert.Equal(t, 1, notifier.count(), "duplicates are not notified")
}

func TestService_Create_Validation(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, _ := newService(t, notifier)

	tests := []struct {
		name  string
		in    catalog.NewRecord
		field string
	}{
		{"missing name", catalog.NewRecord{Description: "d", URL: "u"}, "name"},
		{"blank name", catalog.NewRecord{Name: "   ", Description: "d", URL: "u"}, "name"},
		{"missing description", catalog.NewRecord{Name: "n", URL: "u"}, "description"},
		{"missing url", catalog.NewRecord{Name: "n", Description: "d"}, "url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			require.Error(t, err)
			require.True(t, apperror.IsValidation(err))
			appErr, _ := apperror.AsAppError(err)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
	assert.Zero(t, notifier.count())
}

func TestService_LogsToConfiguredLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	backend := openBackend(t)
	svc := catalog.NewService(catalog.ServiceConfig{
		Store:     backend.Records,
		TxManager: backend.TxManager,
		Policy:    catalog.DefaultPolicy(),
		Logger:    &logger.Logger{SugaredLogger: zap.New(core).Sugar()},
	})
	ctx := context.Background()

	rec := create(t, svc, "alpha", "d")
	_, err := svc.Create(ctx, catalog.NewRecord{Name: "alpha", Description: "d", URL: "u"})
	require.True(t, apperror.IsDuplicate(err))
	require.NoError(t, svc.Delete(ctx, rec.ID))

	assert.Equal(t, 1, logs.FilterMessage("repository created").Len())
	assert.Equal(t, 1, logs.FilterMessage("duplicate repository rejected").Len())
	deleted := logs.FilterMessage("repository deleted").All()
	require.Len(t, deleted, 1)
	assert.Equal(t, "catalog", deleted[0].ContextMap()["component"])
}

func TestService_Create_DispatchFailureKeepsRecord(t *testing.T) {
	notifier := &fakeNotifier{err: &catalog.DispatchError{Kind: catalog.DispatchTimeout, Err: context.DeadlineExceeded}}
	svc, _ := newService(t, notifier)
	ctx := context.Background()

	rec, err := svc.Create(ctx, catalog.NewRecord{Name: "alpha", Description: "d", URL: "u"})
	require.Error(t, err)
	require.NotNil(t, rec, "the persisted record is returned alongside the error")

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDispatch, appErr.Code)
	assert.Equal(t, "timeout", appErr.Details["reason"])
	assert.Equal(t, rec.ID, appErr.Details["id"])
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	page, err := svc.List(ctx, catalog.ListRequest{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, names(page.Records))
	assert.Equal(t, int64(1), page.Total)
}

func TestService_Create_PlainNotifierErrorIsTransport(t *testing.T) {
	svc, _ := newService(t, &fakeNotifier{err: errors.New("boom")})

	_, err := svc.Create(context.Background(), catalog.NewRecord{Name: "alpha", Description: "d", URL: "u"})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "transport", appErr.Details["reason"])
}

func TestService_Create_ConcurrentSameName(t *testing.T) {
	svc, _ := newService(t, &fakeNotifier{})
	ctx := context.Background()

	const workers = 10
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(ctx, catalog.NewRecord{Name: "same", Description: fmt.Sprint(i), URL: "u"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok, dup := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.IsDuplicate(err):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)

	page, err := svc.List(ctx, catalog.ListRequest{Query: "same", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestService_List_SubstringSearch(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	create(t, svc, "alpha", "first")
	create(t, svc, "beta", "second")
	create(t, svc, "gamma", "third")

	page, err := svc.List(ctx, catalog.ListRequest{Query: "a", Offset: 0, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names(page.Records))
	assert.Equal(t, int64(3), page.Total)

	page, err = svc.List(ctx, catalog.ListRequest{Query: "MM", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma"}, names(page.Records))

	page, err = svc.List(ctx, catalog.ListRequest{Query: "SECOND", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names(page.Records), "description matches too")
}

func TestService_List_Pagination(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	for i := 1; i <= 15; i++ {
		create(t, svc, fmt.Sprintf("repo-%02d", i), "d")
	}

	page, err := svc.List(ctx, catalog.ListRequest{Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Records, 5)
	assert.Equal(t, int64(15), page.Total)
	assert.Equal(t, "repo-11", page.Records[0].Name)

	page, err = svc.List(ctx, catalog.ListRequest{Offset: 100, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Records)
	assert.Empty(t, page.Records)
	assert.Equal(t, int64(15), page.Total, "total is independent of the window")
}

func TestService_List_Validation(t *testing.T) {
	svc, _ := newService(t, nil)
	long := make([]rune, 101)
	for i := range long {
		long[i] = 'é'
	}

	tests := []struct {
		name  string
		req   catalog.ListRequest
		field string
	}{
		{"negative skip", catalog.ListRequest{Offset: -1, Limit: 10}, "skip"},
		{"zero limit", catalog.ListRequest{Limit: 0}, "limit"},
		{"limit above max", catalog.ListRequest{Limit: 101}, "limit"},
		{"query too long", catalog.ListRequest{Query: string(long), Limit: 10}, "query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.List(context.Background(), tt.req)
			require.Error(t, err)
			require.True(t, apperror.IsValidation(err))
			appErr, _ := apperror.AsAppError(err)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}

	_, err := svc.List(context.Background(), catalog.ListRequest{Query: string(long[:100]), Limit: 100})
	assert.NoError(t, err, "bounds are inclusive and counted in characters")
}

func TestService_Delete(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	rec := create(t, svc, "alpha", "d")

	require.NoError(t, svc.Delete(ctx, rec.ID))

	err := svc.Delete(ctx, rec.ID)
	assert.True(t, apperror.IsNotFound(err), "second delete is not found")

	err = svc.Delete(ctx, 999)
	assert.True(t, apperror.IsNotFound(err))

	page, err := svc.List(ctx, catalog.ListRequest{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestService_StoreFault(t *testing.T) {
	svc, backend := newService(t, nil)
	backend.Close()
	ctx := context.Background()

	_, err := svc.List(ctx, catalog.ListRequest{Limit: 10})
	assert.True(t, apperror.IsStoreFault(err))

	_, err = svc.Create(ctx, catalog.NewRecord{Name: "a", Description: "d", URL: "u"})
	assert.True(t, apperror.IsStoreFault(err))

	err = svc.Delete(ctx, 1)
	assert.True(t, apperror.IsStoreFault(err), "a store fault is never reported as not found")

	assert.True(t, apperror.IsStoreFault(svc.Ping(ctx)))
}

func TestService_OutboxMode(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("must not be called")}
	backend := openBackend(t)
	svc := catalog.NewService(catalog.ServiceConfig{
		Store:     backend.Records,
		TxManager: backend.TxManager,
		Notifier:  notifier,
		Queue:     outbox.NewPublisher(backend.Outbox),
		Policy:    catalog.DefaultPolicy(),
		Logger:    logger.Nop(),
	})
	ctx := context.Background()

	rec, err := svc.Create(ctx, catalog.NewRecord{Name: "alpha", Description: "d", URL: "u"})
	require.NoError(t, err)
	assert.Zero(t, notifier.count(), "outbox mode never dispatches inline")

	_, err = svc.Create(ctx, catalog.NewRecord{Name: "alpha", Description: "d", URL: "u"})
	assert.True(t, apperror.IsDuplicate(err))

	delivered := &fakeNotifier{}
	relay := outbox.NewRelay(backend.Outbox, delivered, outbox.DefaultRelayConfig(), logger.Nop())
	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the committed record has a pending notification")
	require.Equal(t, 1, delivered.count())
	assert.Equal(t, rec.ID, delivered.calls[0].ID)
	assert.Equal(t, "alpha", delivered.calls[0].Name)
}

// TestService_List_TotalIndependentOfWindow checks that total depends only on
// the query and that every page is bounded by limit.
func TestService_List_TotalIndependentOfWindow(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	for i := 0; i < 23; i++ {
		create(t, svc, fmt.Sprintf("r%02d-%s", i, []string{"go", "py", "rs"}[i%3]), "d")
	}

	rapid.Check(t, func(r *rapid.T) {
		query := rapid.SampledFrom([]string{"", "go", "py", "r1", "zz"}).Draw(r, "query")
		offset := rapid.IntRange(0, 30).Draw(r, "offset")
		limit := rapid.IntRange(1, 100).Draw(r, "limit")

		page, err := svc.List(ctx, catalog.ListRequest{Query: query, Offset: offset, Limit: limit})
		if err != nil {
			r.Fatalf("list: %v", err)
		}
		full, err := svc.List(ctx, catalog.ListRequest{Query: query, Limit: 100})
		if err != nil {
			r.Fatalf("list: %v", err)
		}
		if page.Total != full.Total || int64(len(full.Records)) != full.Total {
			r.Fatalf("total %d vs full %d (%d records)", page.Total, full.Total, len(full.Records))
		}
		if len(page.Records) > limit {
			r.Fatalf("page of %d exceeds limit %d", len(page.Records), limit)
		}
		want := max(0, min(limit, int(full.Total)-offset))
		if len(page.Records) != want {
			r.Fatalf("page of %d, want %d", len(page.Records), want)
		}
	})
}
