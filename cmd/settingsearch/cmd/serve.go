package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	slogctx "github.com/veqryn/slog-context"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/settingsearch/internal/config"
	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/index"
	"github.com/Aman-CERP/settingsearch/internal/logging"
	"github.com/Aman-CERP/settingsearch/internal/mcp"
	"github.com/Aman-CERP/settingsearch/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol server on stdin/stdout.

The index is refreshed once at startup, then every index.refresh_interval
and whenever a descriptor file changes. Queries issued while a pass is
running are answered as soon as it completes. Changes to the catalog
file are picked up without a reindex.

stdout carries JSON-RPC only; logs go to the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, noWatch)
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch descriptor and catalog files")

	return cmd
}

func runServe(ctx context.Context, noWatch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig(cfg.Paths.DataDir)
	logCfg.Level = cfg.Server.LogLevel
	cleanup, err := logging.SetupServe(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	a, err := openApp(ctx, cfg)
	if err != nil {
		slogctx.Error(ctx, "serve_open_failed", serrors.LogAttrs(err)...)
		return err
	}
	defer func() { _ = a.Close() }()

	server, err := mcp.NewServer(a.service, a.passRequest, cfg.Search.MaxResults)
	if err != nil {
		return err
	}

	a.service.RequestReindex(a.passRequest(false), logPass(ctx, "startup"))

	scheduler, err := startRefreshJob(ctx, a)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { _ = scheduler.Shutdown() }()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The client closing stdin ends the server, which stops the watchers.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return server.Serve(gctx)
	})
	if !noWatch {
		startWatchers(gctx, g, a)
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startRefreshJob schedules the periodic reindex. It returns nil when the
// refresh interval is disabled.
func startRefreshJob(ctx context.Context, a *app) (gocron.Scheduler, error) {
	interval := config.Duration(a.cfg.Index.RefreshInterval)
	if interval <= 0 {
		slogctx.Info(ctx, "refresh_disabled")
		return nil, nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
		a.service.RequestReindex(a.passRequest(false), logPass(ctx, "scheduled"))
	}))
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to create refresh job: %w", err)
	}

	scheduler.Start()
	slogctx.Info(ctx, "refresh_scheduled", slog.Duration("interval", interval))
	return scheduler, nil
}

// startWatchers reindexes on descriptor changes and reloads the catalog
// when its file changes. A directory that cannot be watched is logged and
// skipped.
func startWatchers(ctx context.Context, g *errgroup.Group, a *app) {
	opts := watcher.Options{
		DebounceWindow: config.Duration(a.cfg.Index.WatchDebounce),
		MinInterval:    config.Duration(a.cfg.Index.WatchMinInterval),
	}

	descriptorDir := a.cfg.Paths.DescriptorDir
	if err := os.MkdirAll(descriptorDir, 0o755); err != nil {
		slogctx.Warn(ctx, "watch_skipped", slog.String("dir", descriptorDir), slog.String("error", err.Error()))
	} else {
		runWatcher(ctx, g, opts, descriptorDir, func(ctx context.Context, events []watcher.FileEvent) {
			slogctx.Info(ctx, "descriptors_changed", slog.Int("events", len(events)))
			a.service.RequestReindex(a.passRequest(false), logPass(ctx, "watch"))
		})
	}

	catalogFile := a.cfg.Paths.CatalogFile
	catalogOpts := opts
	catalogOpts.Files = []string{filepath.Base(catalogFile)}
	runWatcher(ctx, g, catalogOpts, filepath.Dir(catalogFile), func(ctx context.Context, events []watcher.FileEvent) {
		for _, e := range events {
			if filepath.Base(e.Path) != filepath.Base(catalogFile) {
				continue
			}
			if err := a.catalog.Reload(); err != nil {
				slogctx.Warn(ctx, "catalog_reload_failed", slog.String("error", err.Error()))
			} else {
				slogctx.Info(ctx, "catalog_reloaded", slog.String("path", catalogFile))
			}
			return
		}
	})
}

func runWatcher(ctx context.Context, g *errgroup.Group, opts watcher.Options, dir string, handler watcher.Handler) {
	w, err := watcher.New(opts, handler)
	if err != nil {
		slogctx.Warn(ctx, "watch_skipped", slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	g.Go(func() error {
		err := w.Start(ctx, dir)
		if err != nil && !errors.Is(err, context.Canceled) {
			// Losing a watcher degrades to periodic refresh only.
			slogctx.Warn(ctx, "watch_stopped", slog.String("dir", dir), slog.String("error", err.Error()))
		}
		return nil
	})
}

// logPass returns a completion callback that logs the outcome of a pass.
func logPass(ctx context.Context, trigger string) func(*index.PassResult, error) {
	start := time.Now()
	return func(res *index.PassResult, err error) {
		if err != nil {
			slogctx.Warn(ctx, "reindex_failed",
				append(serrors.LogAttrs(err), slog.String("trigger", trigger))...)
			return
		}
		slogctx.Info(ctx, "reindex_complete",
			slog.String("trigger", trigger),
			slog.String("pass_id", res.PassID),
			slog.Int("rows", res.Rows),
			slog.Duration("since_trigger", time.Since(start)))
	}
}
