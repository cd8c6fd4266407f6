package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/settingsearch/internal/async"
	"github.com/Aman-CERP/settingsearch/internal/config"
	"github.com/Aman-CERP/settingsearch/internal/logging"
	"github.com/Aman-CERP/settingsearch/internal/output"
	"github.com/Aman-CERP/settingsearch/internal/profiling"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

// statusInfo is what the status command reports.
type statusInfo struct {
	DataDir           string         `json:"data_dir"`
	StorePath         string         `json:"store_path"`
	StoreSize         int64          `json:"store_size"`
	Locale            string         `json:"locale"`
	Rows              int            `json:"rows"`
	EnabledRows       int            `json:"enabled_rows"`
	RowsByLocale      map[string]int `json:"rows_by_locale"`
	SiteMapEdges      int            `json:"site_map_edges"`
	SavedQueries      int            `json:"saved_queries"`
	BuildFingerprint  string         `json:"build_fingerprint,omitempty"`
	SourceFingerprint string         `json:"source_fingerprint,omitempty"`
	LastIndexed       string         `json:"last_indexed,omitempty"`
	Indexing          bool           `json:"indexing"`
	Integrity         string         `json:"integrity"`
	LogFile           string         `json:"log_file"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the current index including:
  - Number of rows, enabled rows and rows per locale
  - Site map edges and saved queries
  - Last indexing time and fingerprints of the configured locale
  - Whether another process is indexing right now
  - The result of SQLite's integrity check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireIndex(cfg.StorePath()); err != nil {
		return err
	}

	info, err := collectStatus(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	renderStatus(output.New(cmd.OutOrStdout()), info)
	return nil
}

func collectStatus(ctx context.Context, cfg *config.Config) (statusInfo, error) {
	info := statusInfo{
		DataDir:   cfg.Paths.DataDir,
		StorePath: cfg.StorePath(),
		Locale:    cfg.Index.Locale,
		LogFile:   logging.LogPath(cfg.Paths.DataDir),
	}
	if fi, err := os.Stat(info.StorePath); err == nil {
		info.StoreSize = fi.Size()
	}

	st, err := store.Open(info.StorePath)
	if err != nil {
		return info, err
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(ctx)
	if err != nil {
		return info, err
	}
	info.Rows = stats.Rows
	info.EnabledRows = stats.EnabledRows
	info.RowsByLocale = stats.RowsByLocale
	info.SiteMapEdges = stats.SiteMapEdges
	info.SavedQueries = stats.SavedQueries

	info.Integrity = "ok"
	if err := st.IntegrityCheck(ctx); err != nil {
		info.Integrity = err.Error()
	}

	meta, err := st.Meta(ctx, cfg.Index.Locale)
	if err != nil {
		return info, err
	}
	if meta != nil {
		info.BuildFingerprint = meta.BuildFingerprint
		info.SourceFingerprint = meta.SourceFingerprint
		info.LastIndexed = meta.IndexedAt.Format(time.RFC3339)
	}

	// A lock we cannot take belongs to a running pass.
	lock := async.NewIndexLock(cfg.Paths.DataDir)
	acquired, err := lock.TryLock()
	if err == nil {
		info.Indexing = !acquired
		_ = lock.Unlock()
	}

	return info, nil
}

func renderStatus(out *output.Writer, info statusInfo) {
	out.Header("Index status")
	out.KeyValue("Data dir", info.DataDir)
	out.KeyValue("Store", fmt.Sprintf("%s (%s)", info.StorePath, profiling.FormatBytes(info.StoreSize)))
	out.KeyValue("Rows", fmt.Sprintf("%d (%d enabled)", info.Rows, info.EnabledRows))

	locales := make([]string, 0, len(info.RowsByLocale))
	for l := range info.RowsByLocale {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	for _, l := range locales {
		out.KeyValue("  "+l, info.RowsByLocale[l])
	}

	out.KeyValue("Site map edges", info.SiteMapEdges)
	out.KeyValue("Saved queries", info.SavedQueries)
	out.Newline()

	if info.LastIndexed == "" {
		out.Warningf("Locale %s was never indexed", info.Locale)
	} else {
		out.KeyValue("Locale", info.Locale)
		out.KeyValue("Last indexed", info.LastIndexed)
		out.KeyValue("Build", info.BuildFingerprint)
	}
	if info.Indexing {
		out.Status("", "Indexing in progress")
	}
	if info.Integrity == "ok" {
		out.KeyValue("Integrity", info.Integrity)
	} else {
		out.Warningf("Integrity check failed: %s. Run 'settingsearch index --reset'", info.Integrity)
	}
	out.KeyValue("Log file", info.LogFile)
}
