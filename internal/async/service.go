package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	slogctx "github.com/veqryn/slog-context"

	"github.com/Aman-CERP/settingsearch/internal/aggregate"
	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/history"
	"github.com/Aman-CERP/settingsearch/internal/index"
)

// ErrServiceClosed is returned for work submitted after Close.
var ErrServiceClosed = errors.New("indexing service is closed")

// Crawler runs one index pass.
type Crawler interface {
	Run(ctx context.Context, req index.PassRequest) (*index.PassResult, error)
}

var _ Crawler = (*index.Crawler)(nil)

// Querier answers a query once the index is ready.
type Querier interface {
	Search(ctx context.Context, query string) (*aggregate.Response, error)
}

var _ Querier = (*aggregate.Aggregator)(nil)

// PassHook runs after every successful pass, before deferred queries are
// replayed. A failing hook is logged and does not fail the pass.
type PassHook func(ctx context.Context, res *index.PassResult) error

// DoneFunc is called once per RequestReindex with the pass that served it.
type DoneFunc func(res *index.PassResult, err error)

// Outcome is the eventual answer of a deferred query.
type Outcome struct {
	Response *aggregate.Response
	Err      error
}

// Config configures the service.
type Config struct {
	// DataDir holds the index lock. Empty disables the lock.
	DataDir string
}

// Option configures the service.
type Option func(*Service)

// WithPassHook adds a hook run after each successful pass.
func WithPassHook(h PassHook) Option {
	return func(s *Service) {
		s.hooks = append(s.hooks, h)
	}
}

type reindex struct {
	req       index.PassRequest
	callbacks []DoneFunc
}

type waiter struct {
	ctx   context.Context
	query string
	ch    chan Outcome
}

// Service owns the index lifecycle and the query surface. Only one pass
// runs at a time; triggers arriving meanwhile are folded into a single
// follow-up pass. Queries issued while a pass is in flight are held and
// answered once it completes.
type Service struct {
	crawler  Crawler
	querier  Querier
	ledger   *history.Ledger
	lock     *IndexLock
	hooks    []PassHook
	progress *Progress

	// ready is false exactly while a pass is in flight.
	ready atomic.Bool

	mu      sync.Mutex
	running bool
	closed  bool
	pending *reindex
	waiters []waiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates an idle, ready service.
func NewService(crawler Crawler, querier Querier, ledger *history.Ledger, config Config, opts ...Option) (*Service, error) {
	switch {
	case crawler == nil:
		return nil, fmt.Errorf("nil dependency: crawler is required")
	case querier == nil:
		return nil, fmt.Errorf("nil dependency: querier is required")
	case ledger == nil:
		return nil, fmt.Errorf("nil dependency: ledger is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		crawler:  crawler,
		querier:  querier,
		ledger:   ledger,
		progress: NewProgress(),
		ctx:      ctx,
		cancel:   cancel,
	}
	if config.DataDir != "" {
		s.lock = NewIndexLock(config.DataDir)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ready.Store(true)
	return s, nil
}

// Ready reports whether no pass is in flight.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// RequestReindex schedules a pass and returns immediately. onDone may be
// nil. While a pass runs, requests are coalesced: the latest locale and
// build win, ForceFull is sticky, and every callback fires when the
// follow-up pass ends.
func (s *Service) RequestReindex(req index.PassRequest, onDone DoneFunc) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if onDone != nil {
			onDone(nil, ErrServiceClosed)
		}
		return
	}

	if s.running {
		if s.pending == nil {
			s.pending = &reindex{req: req}
		} else {
			req.ForceFull = req.ForceFull || s.pending.req.ForceFull
			s.pending.req = req
		}
		if onDone != nil {
			s.pending.callbacks = append(s.pending.callbacks, onDone)
		}
		s.mu.Unlock()
		s.progress.Coalesce()
		slogctx.Debug(s.ctx, "reindex_coalesced", slog.String("locale", req.Locale))
		return
	}

	s.running = true
	s.ready.Store(false)
	first := reindex{req: req}
	if onDone != nil {
		first.callbacks = []DoneFunc{onDone}
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(first)
}

// Reindex runs a pass and waits for it.
func (s *Service) Reindex(ctx context.Context, req index.PassRequest) (*index.PassResult, error) {
	type passOutcome struct {
		res *index.PassResult
		err error
	}
	ch := make(chan passOutcome, 1)
	s.RequestReindex(req, func(res *index.PassResult, err error) {
		ch <- passOutcome{res: res, err: err}
	})
	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) loop(r reindex) {
	defer s.wg.Done()

	for {
		res, err := s.runPass(r.req)

		s.mu.Lock()
		next := s.pending
		s.pending = nil
		if next != nil && !s.closed {
			s.mu.Unlock()
			notify(r.callbacks, res, err)
			r = *next
			continue
		}
		s.running = false
		s.ready.Store(true)
		waiters := s.waiters
		s.waiters = nil
		s.mu.Unlock()

		notify(r.callbacks, res, err)
		if next != nil {
			notify(next.callbacks, nil, ErrServiceClosed)
		}
		s.replay(waiters)
		return
	}
}

func notify(callbacks []DoneFunc, res *index.PassResult, err error) {
	for _, cb := range callbacks {
		cb(res, err)
	}
}

func (s *Service) runPass(req index.PassRequest) (*index.PassResult, error) {
	ctx := slogctx.Append(s.ctx, "locale", req.Locale)

	if s.lock != nil {
		acquired, err := s.lock.TryLock()
		if err != nil {
			return nil, serrors.New(serrors.ErrCodeIndexLocked, "failed to acquire index lock", err)
		}
		if !acquired {
			slogctx.Warn(ctx, "index_lock_held", slog.String("path", s.lock.Path()))
			return nil, serrors.New(serrors.ErrCodeIndexLocked,
				"another process is indexing this data directory", nil).
				WithDetail("path", s.lock.Path())
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				slogctx.Warn(ctx, "index_lock_release_failed", slog.String("error", err.Error()))
			}
		}()
	}

	s.progress.Start(req.Locale)
	res, err := s.crawler.Run(ctx, req)
	if err != nil {
		s.progress.SetError(err.Error())
		slogctx.Warn(ctx, "index_pass_failed", serrors.LogAttrs(err)...)
		return nil, err
	}

	s.progress.SetStage(StageRefreshing)
	for _, hook := range s.hooks {
		if err := hook(ctx, res); err != nil {
			slogctx.Warn(ctx, "index_hook_failed", slog.String("error", err.Error()))
		}
	}
	s.progress.SetReady(res)
	return res, nil
}

// replay answers the queries held during the pass.
func (s *Service) replay(waiters []waiter) {
	if len(waiters) > 0 {
		slogctx.Debug(s.ctx, "deferred_queries_replayed", slog.Int("count", len(waiters)))
	}
	for _, w := range waiters {
		s.answer(w)
	}
}

func (s *Service) answer(w waiter) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := w.ctx.Err(); err != nil {
			w.ch <- Outcome{Err: err}
			return
		}
		resp, err := s.querier.Search(w.ctx, w.query)
		w.ch <- Outcome{Response: resp, Err: err}
	}()
}

// SearchDeferred returns a future for query. It is answered immediately
// when the index is ready and after the running pass otherwise. Dropping
// the channel abandons the query.
func (s *Service) SearchDeferred(ctx context.Context, query string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	query = strings.TrimSpace(query)
	if query == "" {
		ch <- Outcome{Err: serrors.New(serrors.ErrCodeQueryEmpty, "query is empty", nil)}
		return ch
	}
	w := waiter{ctx: ctx, query: query, ch: ch}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		ch <- Outcome{Err: ErrServiceClosed}
	case s.ready.Load():
		s.answer(w)
	default:
		s.waiters = append(s.waiters, w)
		slogctx.Debug(ctx, "query_deferred", slog.Int("pending", len(s.waiters)))
	}
	return ch
}

// Search answers query, waiting for a running pass to finish first.
func (s *Service) Search(ctx context.Context, query string) (*aggregate.Response, error) {
	select {
	case out := <-s.SearchDeferred(ctx, query):
		return out.Response, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RecordQuery saves a submitted query.
func (s *Service) RecordQuery(ctx context.Context, query string) error {
	return s.ledger.Record(ctx, query)
}

// ClearHistory deletes every saved query.
func (s *Service) ClearHistory(ctx context.Context) error {
	return s.ledger.Clear(ctx)
}

// RecentQueries returns the most recent saved queries, newest first.
func (s *Service) RecentQueries(ctx context.Context, limit int) ([]string, error) {
	saved, err := s.ledger.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return history.Texts(saved), nil
}

// Suggest returns saved queries starting with prefix, newest first.
func (s *Service) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	saved, err := s.ledger.Suggest(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	return history.Texts(saved), nil
}

// Status returns the current indexing state.
func (s *Service) Status() ProgressSnapshot {
	snap := s.progress.Snapshot()
	snap.Ready = s.ready.Load()

	s.mu.Lock()
	snap.PendingQueries = len(s.waiters)
	s.mu.Unlock()
	return snap
}

// Close stops accepting work, fails held queries and waits for the
// running pass and in-flight answers.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		w.ch <- Outcome{Err: ErrServiceClosed}
	}
	s.cancel()
	s.wg.Wait()
	return nil
}
