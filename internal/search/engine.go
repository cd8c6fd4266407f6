package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	slogctx "github.com/veqryn/slog-context"

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/normalize"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// RowQuerier is the part of the store the engine reads.
type RowQuerier interface {
	QueryRows(ctx context.Context, locale string, columns, patterns []string, mustBeEnabled bool) ([]store.IndexedRow, error)
	Breadcrumbs(ctx context.Context, className, screenTitle string) ([]string, error)
}

var _ RowQuerier = (*store.Store)(nil)

// matchPass is one tiered LIKE query.
type matchPass struct {
	tier     int
	columns  []string
	patterns func(q string) []string
}

func firstWord(q string) []string { return []string{q + "%"} }
func laterWord(q string) []string { return []string{"% " + q + "%"} }
func anyWord(q string) []string   { return []string{q + "%", "% " + q + "%"} }

func anyEntry(q string) []string {
	return []string{q + "%", "% " + q + "%", "%" + normalize.EntriesSeparator + q + "%"}
}

// matchPasses run against the folded columns: the store folds case for
// every script, SQLite LIKE only for ASCII.
var matchPasses = []matchPass{
	{TierTitleFirstWord, []string{store.ColTitleFolded}, firstWord},
	{TierTitleWord, []string{store.ColTitleFolded}, laterWord},
	{TierSummary, []string{store.ColSummaryOnFolded, store.ColSummaryOffFolded}, anyWord},
	{TierKeywords, []string{store.ColKeywordsFolded, store.ColEntriesFolded}, anyEntry},
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithScorer sets the relevance overlay.
func WithScorer(s Scorer) EngineOption {
	return func(e *Engine) {
		e.scorer = s
	}
}

// Engine runs static queries against the index.
type Engine struct {
	store  RowQuerier
	scorer Scorer
	cache  *lru.Cache[string, *Response]
	config EngineConfig
}

// NewEngine creates a query engine.
func NewEngine(rows RowQuerier, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if rows == nil {
		return nil, fmt.Errorf("%w: store is required", ErrNilDependency)
	}
	if config.ScorerTimeout <= 0 {
		config.ScorerTimeout = DefaultConfig().ScorerTimeout
	}

	e := &Engine{store: rows, config: config}
	if config.CacheSize > 0 {
		cache, err := lru.New[string, *Response](config.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		e.cache = cache
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Locale returns the default locale of the engine.
func (e *Engine) Locale() string {
	return e.config.Locale
}

// Purge drops cached responses. Call it after every index pass.
func (e *Engine) Purge() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

// Search queries the default locale.
func (e *Engine) Search(ctx context.Context, query string) (*Response, error) {
	return e.SearchLocale(ctx, e.config.Locale, query)
}

// SearchLocale returns the enabled rows of locale that match query, best
// first.
func (e *Engine) SearchLocale(ctx context.Context, locale, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, serrors.New(serrors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	cacheKey := locale + "\x00" + query
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			return cached.clone(), nil
		}
	}

	start := time.Now()
	ctx = slogctx.Append(ctx, "query_id", uuid.NewString())

	resp := &Response{Query: query, Locale: locale, Ranking: RankingDisabled}

	var scores <-chan scoreOutcome
	if e.scorer != nil {
		var cancel context.CancelFunc
		scores, cancel = e.startScorer(ctx, locale, query)
		defer cancel()
		resp.Ranking = RankingPending
	}

	results, err := e.tieredMatch(ctx, locale, query)
	if err != nil {
		return nil, err
	}
	SortByRank(results)

	if scores != nil {
		resp.Ranking = e.applyScores(ctx, start, scores, results)
	}
	resp.Results = results

	slogctx.Debug(ctx, "query_complete",
		slog.Int("results", len(results)),
		slog.String("ranking", resp.Ranking.String()),
		slog.Duration("duration", time.Since(start)))

	if e.cache != nil && (resp.Ranking == RankingDisabled || resp.Ranking == RankingSucceeded) {
		e.cache.Add(cacheKey, resp.clone())
	}
	return resp, nil
}

// tieredMatch runs the four passes and keeps the first hit of each doc id.
func (e *Engine) tieredMatch(ctx context.Context, locale, query string) ([]Result, error) {
	folded := normalize.Fold(query)
	if folded == "" {
		// Only hyphens or marks: nothing left to match on.
		return nil, nil
	}
	text := store.EscapeLike(folded)

	seen := make(map[int64]bool)
	var results []Result
	for _, p := range matchPasses {
		rows, err := e.store.QueryRows(ctx, locale, p.columns, p.patterns(text), true)
		if err != nil {
			return nil, serrors.Wrap(serrors.ErrCodeSearchFailed, err)
		}

		for _, row := range rows {
			if seen[row.DocID] {
				continue
			}
			seen[row.DocID] = true

			r, err := e.buildResult(ctx, row, p.tier)
			if err != nil {
				slogctx.Warn(ctx, "result_dropped",
					slog.Int64("doc_id", row.DocID),
					slog.String("error", err.Error()))
				continue
			}
			results = append(results, r)
		}
	}
	return results, nil
}

func (e *Engine) buildResult(ctx context.Context, row store.IndexedRow, tier int) (Result, error) {
	crumbs, err := e.store.Breadcrumbs(ctx, row.ClassName, row.ScreenTitle)
	if err != nil {
		slogctx.Debug(ctx, "breadcrumbs_unavailable",
			slog.Int64("doc_id", row.DocID),
			slog.String("error", err.Error()))
		crumbs = nil
	}

	action := row.Action
	if action.Action == "" && action.TargetClass == "" {
		// No explicit intent: open the row's own screen.
		action.TargetClass = row.ClassName
	}

	return NewBuilder().
		Title(row.Title).
		Summary(row.SummaryOn).
		Breadcrumbs(crumbs).
		Rank(RefineRank(row.Title, tier, row.Key)).
		StableID(row.DocID).
		Action(action).
		Icon(row.IconRef).
		Payload(row.Payload).
		Build()
}

type scoreOutcome struct {
	scores map[int64]float64
	err    error
}

// startScorer runs the scorer in the background. The channel is buffered
// so a late scorer never blocks; cancel is called once its answer is no
// longer wanted.
func (e *Engine) startScorer(ctx context.Context, locale, query string) (<-chan scoreOutcome, context.CancelFunc) {
	sctx, cancel := context.WithCancel(ctx)
	ch := make(chan scoreOutcome, 1)
	go func() {
		scores, err := e.scorer.Score(sctx, locale, query)
		ch <- scoreOutcome{scores: scores, err: err}
	}()
	return ch, cancel
}

// applyScores waits for the scorer until start+ScorerTimeout and, if it
// answered, re-orders results by descending score.
func (e *Engine) applyScores(ctx context.Context, start time.Time, ch <-chan scoreOutcome, results []Result) RankingState {
	wait := e.config.ScorerTimeout - time.Since(start)
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	var out scoreOutcome
	select {
	case out = <-ch:
	case <-timer.C:
		select {
		case out = <-ch:
		default:
			slogctx.Debug(ctx, "ranking_timed_out", slog.Duration("timeout", e.config.ScorerTimeout))
			return RankingTimedOut
		}
	case <-ctx.Done():
		return RankingTimedOut
	}

	if out.err != nil {
		slogctx.Debug(ctx, "ranking_failed", slog.String("error", out.err.Error()))
		return RankingFailed
	}

	score := func(id int64) float64 {
		if s, ok := out.scores[id]; ok {
			return s
		}
		return -math.MaxFloat64
	}
	for i := range results {
		if s, ok := out.scores[results[i].StableID]; ok {
			results[i].Score = s
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return score(results[i].StableID) > score(results[j].StableID)
	})
	return RankingSucceeded
}

func (r *Response) clone() *Response {
	c := *r
	c.Results = append([]Result(nil), r.Results...)
	c.Cached = true
	return &c
}
