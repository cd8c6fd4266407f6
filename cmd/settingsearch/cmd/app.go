package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	slogctx "github.com/veqryn/slog-context"

	"github.com/Aman-CERP/settingsearch/internal/aggregate"
	"github.com/Aman-CERP/settingsearch/internal/async"
	"github.com/Aman-CERP/settingsearch/internal/config"
	"github.com/Aman-CERP/settingsearch/internal/dynamic"
	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/history"
	"github.com/Aman-CERP/settingsearch/internal/index"
	"github.com/Aman-CERP/settingsearch/internal/search"
	"github.com/Aman-CERP/settingsearch/internal/source"
	"github.com/Aman-CERP/settingsearch/internal/store"
	"github.com/Aman-CERP/settingsearch/pkg/version"
)

// app wires the index, the query path and the indexing service for one
// command invocation.
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *source.Registry
	scorer   *search.BleveScorer
	engine   *search.Engine
	catalog  *dynamic.FileCatalog
	ledger   *history.Ledger
	service  *async.Service
}

// openApp opens the store under the configured data directory and
// builds everything on top of it.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	a := &app{cfg: cfg, store: st}
	if err := a.build(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	a.registry = source.NewRegistry()
	a.registry.AddDir(cfg.Paths.DescriptorDir)

	crawlCfg := index.DefaultCrawlerConfig()
	crawlCfg.AppSourceID = cfg.Index.AppSourceID
	crawlCfg.Concurrency = cfg.Index.Concurrency
	crawler, err := index.NewCrawler(a.store, a.registry, crawlCfg)
	if err != nil {
		return err
	}

	engineCfg := search.EngineConfig{
		Locale:        cfg.Index.Locale,
		ScorerTimeout: config.Duration(cfg.Search.ScorerTimeout),
		CacheSize:     cfg.Search.CacheSize,
	}
	var engineOpts []search.EngineOption
	if cfg.Search.Ranking == config.RankingBleve {
		a.scorer = search.NewBleveScorer()
		engineOpts = append(engineOpts, search.WithScorer(a.scorer))
	}
	a.engine, err = search.NewEngine(a.store, engineCfg, engineOpts...)
	if err != nil {
		return err
	}

	a.catalog, err = dynamic.NewFileCatalog(cfg.Paths.CatalogFile)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	agg, err := aggregate.New(a.engine, aggregate.Config{
		StaticTimeout:  config.Duration(cfg.Search.StaticTimeout),
		DynamicTimeout: config.Duration(cfg.Search.DynamicTimeout),
	},
		dynamic.NewGuarded(dynamic.NewAppSearcher(a.catalog)),
		dynamic.NewGuarded(dynamic.NewAccessibilitySearcher(a.catalog)),
		dynamic.NewGuarded(dynamic.NewInputDeviceSearcher(a.catalog)),
	)
	if err != nil {
		return err
	}

	a.ledger = history.New(a.store, cfg.History.Capacity)

	a.service, err = async.NewService(crawler, agg, a.ledger,
		async.Config{DataDir: cfg.Paths.DataDir},
		async.WithPassHook(a.afterPass))
	if err != nil {
		return err
	}

	if err := a.rebuildScorer(ctx); err != nil {
		slogctx.Warn(ctx, "scorer_rebuild_failed", serrors.LogAttrs(err)...)
	}
	return nil
}

// afterPass drops cached responses and reloads the relevance overlay.
func (a *app) afterPass(ctx context.Context, res *index.PassResult) error {
	a.engine.Purge()
	slogctx.Debug(ctx, "result_cache_purged", slog.String("pass_id", res.PassID))
	return a.rebuildScorer(ctx)
}

func (a *app) rebuildScorer(ctx context.Context) error {
	if a.scorer == nil {
		return nil
	}
	rows, err := a.store.RowsWhereEnabledEquals(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to read rows for ranking: %w", err)
	}
	return a.scorer.Rebuild(ctx, rows)
}

// passRequest returns the pass request of the configured locale and
// build.
func (a *app) passRequest(full bool) index.PassRequest {
	build := a.cfg.Index.BuildFingerprint
	if build == "" {
		build = version.Fingerprint()
	}
	return index.PassRequest{
		Locale:           a.cfg.Index.Locale,
		BuildFingerprint: build,
		ForceFull:        full,
	}
}

func (a *app) Close() error {
	var errs []error
	if a.service != nil {
		errs = append(errs, a.service.Close())
	}
	if a.scorer != nil {
		errs = append(errs, a.scorer.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
