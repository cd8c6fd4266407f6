package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"
	"golang.org/x/sync/errgroup"

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/source"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("required dependency is nil")

// Lister enumerates the sources of one pass. *source.Registry implements it.
type Lister interface {
	Sources() []source.Source
}

// CrawlerConfig configures a Crawler.
type CrawlerConfig struct {
	// AppSourceID owns rows that carry no source id.
	AppSourceID string
	// Concurrency bounds how many sources are collected at once.
	Concurrency int
	// Retry is used when the store is busy at the start of the write.
	Retry serrors.RetryConfig
}

// DefaultCrawlerConfig returns the default configuration.
func DefaultCrawlerConfig() CrawlerConfig {
	return CrawlerConfig{
		Concurrency: 4,
		Retry:       serrors.StoreRetryConfig(),
	}
}

// PassRequest selects what a pass indexes.
type PassRequest struct {
	Locale           string
	BuildFingerprint string
	// ForceFull rebuilds even when the fingerprints match.
	ForceFull bool
}

// PassResult summarizes a completed pass.
type PassResult struct {
	PassID   string        `json:"pass_id"`
	Locale   string        `json:"locale"`
	Full     bool          `json:"full"`
	Sources  int           `json:"sources"`
	Skipped  []string      `json:"skipped,omitempty"`
	Rows     int           `json:"rows"`
	Dropped  int           `json:"dropped"`
	Disabled int           `json:"disabled"`
	Enabled  int           `json:"enabled"`
	Duration time.Duration `json:"duration"`
}

// Crawler runs index passes: collect every source, then write the result
// in one store transaction.
type Crawler struct {
	store     *store.Store
	lister    Lister
	validator *Validator
	config    CrawlerConfig
}

// NewCrawler creates a crawler.
func NewCrawler(st *store.Store, lister Lister, config CrawlerConfig) (*Crawler, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: store is required", ErrNilDependency)
	}
	if lister == nil {
		return nil, fmt.Errorf("%w: source lister is required", ErrNilDependency)
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Crawler{
		store:     st,
		lister:    lister,
		validator: NewValidator(config.AppSourceID),
		config:    config,
	}, nil
}

// collected is what one source returned; it is owned by one goroutine
// until the group finishes.
type collected struct {
	sourceID string
	keys     []string
	keysOK   bool
	contrib  Contribution
	skipped  bool
	elapsed  time.Duration
}

// Run executes one pass. Source failures are logged and skipped; only a
// store failure fails the pass, in which case nothing is persisted.
func (c *Crawler) Run(ctx context.Context, req PassRequest) (*PassResult, error) {
	start := time.Now()
	passID := uuid.NewString()
	ctx = slogctx.Append(ctx, "pass_id", passID, "locale", req.Locale)

	sources := c.lister.Sources()
	fingerprint := source.Fingerprint(sources)

	full := req.ForceFull
	if !full {
		var err error
		full, err = c.store.NeedsFullRebuild(ctx, req.Locale, req.BuildFingerprint, fingerprint)
		if err != nil {
			return nil, serrors.StoreError("failed to read index metadata", err)
		}
	}

	slogctx.Info(ctx, "index_pass_started",
		slog.Bool("full", full),
		slog.Int("sources", len(sources)))

	results := c.collect(ctx, sources, req.Locale, full)

	overlay := make(Overlay)
	res := &PassResult{PassID: passID, Locale: req.Locale, Full: full, Sources: len(sources)}
	var answered []source.Source
	for i, r := range results {
		if r.skipped {
			res.Skipped = append(res.Skipped, r.sourceID)
		} else {
			answered = append(answered, sources[i])
		}
		if r.keysOK {
			overlay.Add(r.sourceID, r.keys)
		}
	}

	// A source skipped during a rebuild has no rows now. Recording only the
	// sources that answered makes the next pass a rebuild again.
	recorded := fingerprint
	if full && len(res.Skipped) > 0 {
		recorded = source.Fingerprint(answered)
	}

	if err := c.write(ctx, req, recorded, full, results, overlay, res); err != nil {
		slogctx.Warn(ctx, "index_pass_failed", serrors.LogAttrs(err)...)
		return nil, err
	}

	res.Duration = time.Since(start)
	slogctx.Info(ctx, "index_pass_complete",
		slog.Bool("full", full),
		slog.Int("rows", res.Rows),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("disabled", res.Disabled),
		slog.Int("enabled", res.Enabled),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// collect pulls every source in parallel. Each goroutine writes only its
// own slot and always returns nil, so one failing source cannot cancel
// the others.
func (c *Crawler) collect(ctx context.Context, sources []source.Source, locale string, full bool) []collected {
	results := make([]collected, len(sources))
	converter := NewConverter(locale)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = c.collectOne(gctx, converter, src, locale, full)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Crawler) collectOne(ctx context.Context, conv *Converter, src source.Source, locale string, full bool) (out collected) {
	start := time.Now()
	out.sourceID = src.ID()
	ctx = slogctx.Append(ctx, "source_id", out.sourceID)

	defer func() {
		if r := recover(); r != nil {
			slogctx.Warn(ctx, "source_skipped",
				slog.String("reason", "panic"),
				slog.Any("panic", r))
			out = collected{sourceID: src.ID(), skipped: true}
		}
		out.elapsed = time.Since(start)
		slogctx.Debug(ctx, "source_collected",
			slog.Bool("skipped", out.skipped),
			slog.Int("rows", len(out.contrib.Rows)),
			slog.Duration("elapsed", out.elapsed))
	}()

	keys, err := src.NonIndexableKeys(ctx)
	if err != nil {
		slogctx.Warn(ctx, "source_skipped",
			append(serrors.LogAttrs(serrors.SourceError(out.sourceID, err)), "step", "non_indexable_keys")...)
		out.skipped = true
		return out
	}
	out.keys, out.keysOK = keys, true

	if !full {
		return out
	}

	screens, err := src.Screens(ctx, locale)
	if err == nil {
		var raw []source.RawItem
		raw, err = src.RawItems(ctx, locale)
		if err == nil {
			var defaults source.Defaults
			if p, ok := src.(source.Provider); ok {
				defaults = p.Defaults()
			}
			hidden := make(Overlay)
			hidden.Add(out.sourceID, keys)
			out.contrib = conv.Convert(out.sourceID, defaults, screens, raw, hidden)
			return out
		}
	}

	slogctx.Warn(ctx, "source_skipped",
		append(serrors.LogAttrs(serrors.SourceError(out.sourceID, err)), "step", "descriptors")...)
	out.skipped = true
	return out
}

func (c *Crawler) write(ctx context.Context, req PassRequest, fingerprint string, full bool, results []collected, overlay Overlay, res *PassResult) error {
	var batch *store.Batch
	err := serrors.Retry(ctx, c.config.Retry, true, func() error {
		var err error
		batch, err = c.store.BeginBulkUpdate(ctx)
		return err
	})
	if err != nil {
		return err
	}
	defer batch.Rollback()

	if full {
		if err := batch.Reset(ctx); err != nil {
			return serrors.Wrap(serrors.ErrCodeIndexFailed, err)
		}
		for _, r := range results {
			for _, row := range r.contrib.Rows {
				if _, err := batch.UpsertRow(ctx, row); err != nil {
					return serrors.Wrap(serrors.ErrCodeIndexFailed, err)
				}
			}
			for _, e := range r.contrib.Edges {
				if err := batch.AddSiteMapEdge(ctx, e); err != nil {
					return serrors.Wrap(serrors.ErrCodeIndexFailed, err)
				}
			}
		}
		res.Rows, res.Dropped = batch.Counts()
	}

	check, err := c.validator.Validate(ctx, batch, overlay)
	if err != nil {
		return serrors.Wrap(serrors.ErrCodeIndexFailed, err)
	}
	res.Disabled, res.Enabled = check.Disabled, check.Enabled

	if err := batch.RecordIndexed(ctx, req.Locale, req.BuildFingerprint, fingerprint); err != nil {
		return serrors.Wrap(serrors.ErrCodeIndexFailed, err)
	}
	return batch.Commit()
}
