package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/settingsearch/internal/aggregate"
	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/history"
	"github.com/Aman-CERP/settingsearch/internal/index"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

// gatedCrawler blocks each pass until release is called.
type gatedCrawler struct {
	mu      sync.Mutex
	gate    chan struct{}
	started chan index.PassRequest
	runs    []index.PassRequest
	err     error
}

func newGatedCrawler() *gatedCrawler {
	return &gatedCrawler{
		gate:    make(chan struct{}),
		started: make(chan index.PassRequest, 16),
	}
}

func (c *gatedCrawler) Run(ctx context.Context, req index.PassRequest) (*index.PassResult, error) {
	c.mu.Lock()
	c.runs = append(c.runs, req)
	gate := c.gate
	err := c.err
	c.mu.Unlock()

	c.started <- req
	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &index.PassResult{Locale: req.Locale, Full: req.ForceFull, Rows: 3}, nil
}

// releaseAll lets every current and future pass through.
func (c *gatedCrawler) releaseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.gate)
}

func (c *gatedCrawler) requests() []index.PassRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]index.PassRequest(nil), c.runs...)
}

type countingQuerier struct {
	calls atomic.Int32
}

func (q *countingQuerier) Search(_ context.Context, query string) (*aggregate.Response, error) {
	q.calls.Add(1)
	return &aggregate.Response{Query: query}, nil
}

func newService(t *testing.T, crawler Crawler, querier Querier, opts ...Option) *Service {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s, err := NewService(crawler, querier, history.New(st, history.DefaultCapacity),
		Config{DataDir: t.TempDir()}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitStarted(t *testing.T, c *gatedCrawler) index.PassRequest {
	t.Helper()
	select {
	case req := <-c.started:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not start")
		return index.PassRequest{}
	}
}

func TestNewService_NilDependencies(t *testing.T) {
	_, err := NewService(nil, &countingQuerier{}, &history.Ledger{}, Config{})
	assert.Error(t, err)

	_, err = NewService(newGatedCrawler(), nil, &history.Ledger{}, Config{})
	assert.Error(t, err)

	_, err = NewService(newGatedCrawler(), &countingQuerier{}, nil, Config{})
	assert.Error(t, err)
}

func TestService_ReadyBeforeFirstPass(t *testing.T) {
	// Given: a fresh service
	q := &countingQuerier{}
	s := newService(t, newGatedCrawler(), q)

	// When: a query is issued
	resp, err := s.Search(context.Background(), " wifi ")

	// Then: it is answered immediately
	require.NoError(t, err)
	assert.Equal(t, "wifi", resp.Query)
	assert.True(t, s.Ready())
	assert.Equal(t, string(StatusIdle), s.Status().Status)
}

func TestService_ReindexCompletes(t *testing.T) {
	// Given: a crawler that lets passes through
	c := newGatedCrawler()
	c.releaseAll()
	var hooked atomic.Int32
	s := newService(t, c, &countingQuerier{}, WithPassHook(func(_ context.Context, res *index.PassResult) error {
		hooked.Add(1)
		return nil
	}))

	// When: a pass is requested and awaited
	res, err := s.Reindex(context.Background(), index.PassRequest{Locale: "en_US", BuildFingerprint: "b1"})

	// Then: its result is delivered and the status reflects it
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, int32(1), hooked.Load())

	status := s.Status()
	assert.True(t, status.Ready)
	assert.Equal(t, string(StatusReady), status.Status)
	assert.Equal(t, 1, status.Passes)
	require.NotNil(t, status.LastPass)
	assert.Equal(t, "en_US", status.LastPass.Locale)
}

func TestService_QueryDeferredDuringPass(t *testing.T) {
	// Given: a pass in flight
	c := newGatedCrawler()
	q := &countingQuerier{}
	s := newService(t, c, q)
	done := make(chan struct{})
	s.RequestReindex(index.PassRequest{Locale: "en_US"}, func(*index.PassResult, error) { close(done) })
	waitStarted(t, c)
	require.False(t, s.Ready())

	// When: a query is issued
	future := s.SearchDeferred(context.Background(), "bluetooth")

	// Then: it is held until the pass ends
	select {
	case <-future:
		t.Fatal("query answered while indexing")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(0), q.calls.Load())
	assert.Equal(t, 1, s.Status().PendingQueries)

	c.releaseAll()
	select {
	case out := <-future:
		require.NoError(t, out.Err)
		assert.Equal(t, "bluetooth", out.Response.Query)
	case <-time.After(2 * time.Second):
		t.Fatal("deferred query was not replayed")
	}
	<-done
	assert.True(t, s.Ready())
	assert.Equal(t, int32(1), q.calls.Load())
	assert.Equal(t, 0, s.Status().PendingQueries)
}

func TestService_TriggersCoalesced(t *testing.T) {
	// Given: a pass in flight
	c := newGatedCrawler()
	s := newService(t, c, &countingQuerier{})

	var wg sync.WaitGroup
	var callbacks atomic.Int32
	cb := func(*index.PassResult, error) {
		callbacks.Add(1)
		wg.Done()
	}
	wg.Add(4)
	s.RequestReindex(index.PassRequest{Locale: "en_US"}, cb)
	waitStarted(t, c)

	// When: three more triggers arrive
	s.RequestReindex(index.PassRequest{Locale: "en_US", ForceFull: true}, cb)
	s.RequestReindex(index.PassRequest{Locale: "fr_FR"}, cb)
	s.RequestReindex(index.PassRequest{Locale: "de_DE"}, cb)
	c.releaseAll()
	wg.Wait()

	// Then: they collapse into one follow-up pass with the latest locale
	runs := c.requests()
	require.Len(t, runs, 2)
	assert.Equal(t, "de_DE", runs[1].Locale)
	assert.True(t, runs[1].ForceFull, "force full is sticky across coalesced triggers")
	assert.Equal(t, int32(4), callbacks.Load())
	assert.Equal(t, 3, s.Status().Coalesced)
}

func TestService_PassFailure(t *testing.T) {
	// Given: a crawler that fails
	c := newGatedCrawler()
	c.err = serrors.StoreError("store unavailable", errors.New("disk gone"))
	c.releaseAll()
	var hooked atomic.Int32
	s := newService(t, c, &countingQuerier{}, WithPassHook(func(context.Context, *index.PassResult) error {
		hooked.Add(1)
		return nil
	}))

	// When: a pass runs
	_, err := s.Reindex(context.Background(), index.PassRequest{Locale: "en_US"})

	// Then: the error is reported, hooks are skipped and queries still work
	require.Error(t, err)
	assert.Equal(t, int32(0), hooked.Load())
	status := s.Status()
	assert.Equal(t, string(StatusError), status.Status)
	assert.Contains(t, status.ErrorMessage, "store unavailable")
	assert.True(t, status.Ready)

	_, err = s.Search(context.Background(), "wifi")
	assert.NoError(t, err)
}

func TestService_HookFailureDoesNotFailPass(t *testing.T) {
	c := newGatedCrawler()
	c.releaseAll()
	s := newService(t, c, &countingQuerier{}, WithPassHook(func(context.Context, *index.PassResult) error {
		return errors.New("scorer rebuild failed")
	}))

	res, err := s.Reindex(context.Background(), index.PassRequest{Locale: "en_US"})

	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, string(StatusReady), s.Status().Status)
}

func TestService_LockHeldByAnotherProcess(t *testing.T) {
	// Given: the data directory lock is held elsewhere
	dir := t.TempDir()
	other := NewIndexLock(dir)
	acquired, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = other.Unlock() }()

	c := newGatedCrawler()
	c.releaseAll()
	st, err := store.Open("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	s, err := NewService(c, &countingQuerier{}, history.New(st, 0), Config{DataDir: dir})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// When: a pass is requested
	_, err = s.Reindex(context.Background(), index.PassRequest{Locale: "en_US"})

	// Then: nothing is crawled
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeIndexLocked, serrors.GetCode(err))
	assert.Empty(t, c.requests())
	assert.True(t, s.Ready())
}

func TestService_EmptyQuery(t *testing.T) {
	s := newService(t, newGatedCrawler(), &countingQuerier{})

	_, err := s.Search(context.Background(), "   ")

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeQueryEmpty, serrors.GetCode(err))
}

func TestService_SearchContextCancelled(t *testing.T) {
	// Given: a pass in flight
	c := newGatedCrawler()
	s := newService(t, c, &countingQuerier{})
	s.RequestReindex(index.PassRequest{Locale: "en_US"}, nil)
	waitStarted(t, c)

	// When: the caller gives up
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Search(ctx, "wifi")

	// Then: the wait ends with the context error
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	c.releaseAll()
}

func TestService_Close(t *testing.T) {
	// Given: a pass in flight with a held query
	c := newGatedCrawler()
	s := newService(t, c, &countingQuerier{})
	passErr := make(chan error, 1)
	s.RequestReindex(index.PassRequest{Locale: "en_US"}, func(_ *index.PassResult, err error) { passErr <- err })
	waitStarted(t, c)
	future := s.SearchDeferred(context.Background(), "wifi")

	// When: the service is closed
	require.NoError(t, s.Close())

	// Then: the held query fails, the pass is cancelled and later work is refused
	out := <-future
	assert.ErrorIs(t, out.Err, ErrServiceClosed)
	assert.ErrorIs(t, <-passErr, context.Canceled)

	var lateErr error
	s.RequestReindex(index.PassRequest{Locale: "en_US"}, func(_ *index.PassResult, err error) { lateErr = err })
	assert.ErrorIs(t, lateErr, ErrServiceClosed)

	out = <-s.SearchDeferred(context.Background(), "wifi")
	assert.ErrorIs(t, out.Err, ErrServiceClosed)
	assert.NoError(t, s.Close())
}

func TestService_History(t *testing.T) {
	s := newService(t, newGatedCrawler(), &countingQuerier{})
	ctx := context.Background()

	for _, q := range []string{"wifi", "wallpaper", "bluetooth"} {
		require.NoError(t, s.RecordQuery(ctx, q))
	}

	recent, err := s.RecentQueries(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	suggestions, err := s.Suggest(ctx, "w", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"wifi", "wallpaper"}, suggestions)

	require.NoError(t, s.ClearHistory(ctx))
	recent, err = s.RecentQueries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
