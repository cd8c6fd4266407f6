// Package aggregate fans a query out to the static index and the dynamic
// sources, waits for each with its own timeout and merges what arrived.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/search"
)

// StaticSearcher runs the static index query.
type StaticSearcher interface {
	Search(ctx context.Context, query string) (*search.Response, error)
}

var _ StaticSearcher = (*search.Engine)(nil)

// DynamicSearcher is a dynamic result source.
type DynamicSearcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// Config configures the aggregator.
type Config struct {
	// StaticTimeout bounds the wait for the index query (default: 1s).
	StaticTimeout time.Duration
	// DynamicTimeout bounds the wait for each dynamic source (default: 300ms).
	DynamicTimeout time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StaticTimeout:  time.Second,
		DynamicTimeout: 300 * time.Millisecond,
	}
}

// Response is the merged outcome of one query.
type Response struct {
	Query   string               `json:"query"`
	Results []search.Result      `json:"results"`
	Ranking search.RankingState  `json:"ranking"`
	Sources map[string]TaskState `json:"sources"`
}

// TaskState is how one task of a query ended.
type TaskState string

const (
	TaskDone     TaskState = "done"
	TaskFailed   TaskState = "failed"
	TaskTimedOut TaskState = "timed_out"
)

// StaticSourceName names the index task in Response.Sources.
const StaticSourceName = "static"

// Aggregator runs the static query and the dynamic sources concurrently.
type Aggregator struct {
	static  StaticSearcher
	dynamic []DynamicSearcher
	config  Config
}

// New creates an aggregator. Dynamic sources are merged in the order
// given: installed apps, accessibility services, input devices.
func New(static StaticSearcher, config Config, dynamic ...DynamicSearcher) (*Aggregator, error) {
	if static == nil {
		return nil, fmt.Errorf("%w: static searcher is required", search.ErrNilDependency)
	}
	def := DefaultConfig()
	if config.StaticTimeout <= 0 {
		config.StaticTimeout = def.StaticTimeout
	}
	if config.DynamicTimeout <= 0 {
		config.DynamicTimeout = def.DynamicTimeout
	}
	return &Aggregator{static: static, dynamic: dynamic, config: config}, nil
}

type outcome struct {
	results []search.Result
	ranking search.RankingState
	err     error
	// finished is when the task returned.
	finished time.Time
}

// task is one running fan-out branch. Its channel is buffered so a task
// finishing after its result was discarded never blocks.
type task struct {
	name    string
	timeout time.Duration
	ch      chan outcome
	cancel  context.CancelFunc
}

// Search queries every source and merges the results. A source that
// fails or misses its deadline contributes nothing; only an empty query
// is an error.
func (a *Aggregator) Search(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, serrors.New(serrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	start := time.Now()

	tasks := make([]*task, 0, 1+len(a.dynamic))
	tasks = append(tasks, a.submit(ctx, StaticSourceName, a.config.StaticTimeout, func(tctx context.Context) outcome {
		resp, err := a.static.Search(tctx, query)
		if err != nil {
			return outcome{err: err}
		}
		return outcome{results: resp.Results, ranking: resp.Ranking}
	}))
	for _, d := range a.dynamic {
		tasks = append(tasks, a.submit(ctx, d.Name(), a.config.DynamicTimeout, func(tctx context.Context) outcome {
			results, err := d.Search(tctx, query)
			return outcome{results: results, err: err}
		}))
	}

	resp := &Response{Query: query, Sources: make(map[string]TaskState, len(tasks))}
	lists := make([][]search.Result, len(tasks))
	for i, t := range tasks {
		out, state := a.await(ctx, start, t)
		resp.Sources[t.name] = state
		lists[i] = out.results
		if i == 0 {
			resp.Ranking = out.ranking
		}
	}

	if resp.Ranking == search.RankingSucceeded {
		resp.Results = Append(lists[0], lists[1:]...)
	} else {
		resp.Results = Merge(lists[0], lists[1:]...)
	}

	slogctx.Debug(ctx, "aggregate_complete",
		slog.Int("results", len(resp.Results)),
		slog.Duration("duration", time.Since(start)))
	return resp, nil
}

func (a *Aggregator) submit(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) outcome) *task {
	tctx, cancel := context.WithCancel(ctx)
	t := &task{name: name, timeout: timeout, ch: make(chan outcome, 1), cancel: cancel}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.ch <- outcome{err: fmt.Errorf("panic in %s: %v", name, r), finished: time.Now()}
			}
		}()
		out := fn(tctx)
		out.finished = time.Now()
		t.ch <- out
	}()
	return t
}

// await waits for t until start+t.timeout. Only a result that finished by
// that deadline counts: one that is buffered but late, because an earlier
// task kept await busy, is discarded. A late task keeps running; its
// context is cancelled once its result has been discarded.
func (a *Aggregator) await(ctx context.Context, start time.Time, t *task) (outcome, TaskState) {
	deadline := start.Add(t.timeout)
	timer := time.NewTimer(max(time.Until(deadline), 0))
	defer timer.Stop()

	select {
	case out := <-t.ch:
		return a.accept(ctx, t, deadline, out)
	case <-timer.C:
	case <-ctx.Done():
	}

	// The result may have been ready alongside the timer.
	select {
	case out := <-t.ch:
		return a.accept(ctx, t, deadline, out)
	default:
	}
	t.cancel()
	return a.timedOut(ctx, t)
}

func (a *Aggregator) accept(ctx context.Context, t *task, deadline time.Time, out outcome) (outcome, TaskState) {
	t.cancel()
	if out.finished.After(deadline) {
		return a.timedOut(ctx, t)
	}
	if out.err != nil {
		slogctx.Warn(ctx, "aggregate_source_failed",
			append(serrors.LogAttrs(out.err), "source", t.name)...)
		return outcome{}, TaskFailed
	}
	return out, TaskDone
}

func (a *Aggregator) timedOut(ctx context.Context, t *task) (outcome, TaskState) {
	slogctx.Debug(ctx, "aggregate_source_timed_out",
		slog.String("source", t.name),
		slog.Duration("timeout", t.timeout))
	return outcome{}, TaskTimedOut
}
