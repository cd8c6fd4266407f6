package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/settingsearch/internal/output"
)

func newIndexCmd() *cobra.Command {
	var full, reset bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the settings index",
		Long: `Crawl every descriptor in the descriptor directory and write the
result to the index in one transaction.

The index is rebuilt from scratch when the locale, the build fingerprint
or the set of descriptors changed since the last pass; rows a descriptor
no longer lists are gone after the rebuild. Otherwise only enabled bits
are updated: keys a source marks non_indexable are disabled.

Use --full to rebuild even when nothing changed, and --reset to wipe the
index first (saved queries are kept).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Ctrl+C cancels the pass; the store transaction is rolled back.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIndex(ctx, cmd, full, reset)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Rebuild the index even if nothing changed")
	cmd.Flags().BoolVar(&reset, "reset", false, "Wipe the index before the pass")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, full, reset bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	startLogging(cfg)

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := output.New(cmd.OutOrStdout())
	if reset {
		if err := a.store.DropAndRecreate(ctx); err != nil {
			out.Errorf("Reset failed: %v", err)
			return err
		}
		out.Status("", "Index cleared")
	}

	// A wiped index has no metadata, so the pass below is a rebuild anyway.
	req := a.passRequest(full || reset)
	out.Statusf("", "Indexing %s (locale %s)", cfg.Paths.DescriptorDir, req.Locale)

	res, err := a.service.Reindex(ctx, req)
	if err != nil {
		slog.Error("index_failed", slog.String("error", err.Error()))
		out.Errorf("Indexing failed: %v", err)
		return err
	}

	mode := "incremental"
	if res.Full {
		mode = "full"
	}
	out.Successf("Indexed %d rows from %d sources (%s, %s)", res.Rows, res.Sources, mode, res.Duration.Round(time.Millisecond))
	out.KeyValue("Enabled", res.Enabled)
	out.KeyValue("Disabled", res.Disabled)
	if res.Dropped > 0 {
		out.KeyValue("Dropped", res.Dropped)
	}
	if len(res.Skipped) > 0 {
		out.Warningf("Skipped sources: %s", strings.Join(res.Skipped, ", "))
	}
	return nil
}

// requireIndex fails when the data directory holds no index yet.
func requireIndex(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no index found at %s. Run 'settingsearch index' first", path)
	}
	return nil
}
