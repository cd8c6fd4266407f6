package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/settingsearch/internal/aggregate"
	"github.com/Aman-CERP/settingsearch/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	format string // "text", "json"
	record bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the settings index",
		Long: `Search settings by title, summary and keywords.

Results from the index are ranked by match tier and, when ranking is
enabled, re-ordered by relevance. Matching installed apps, accessibility
services and input devices are appended.

Examples:
  settingsearch search wifi
  settingsearch search "dark theme" --limit 5
  settingsearch search bluetooth --format json
  settingsearch search "font size" --record`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.max_results)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.record, "record", false, "Save the query to the recent queries list")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", opts.format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireIndex(cfg.StorePath()); err != nil {
		return err
	}
	startLogging(cfg)

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	limit := opts.limit
	if limit <= 0 {
		limit = cfg.Search.MaxResults
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", limit))
	resp, err := a.service.Search(ctx, query)
	if err != nil {
		return err
	}
	slog.Info("search_complete",
		slog.Int("results", len(resp.Results)),
		slog.String("ranking", resp.Ranking.String()))

	if opts.record {
		if err := a.service.RecordQuery(ctx, query); err != nil {
			slog.Warn("record_query_failed", slog.String("error", err.Error()))
		}
	}

	if opts.format == "json" {
		return writeSearchJSON(cmd, resp, limit)
	}

	out := output.New(cmd.OutOrStdout())
	out.Header(fmt.Sprintf("Settings matching %q", resp.Query))
	out.Results(resp.Results, limit)
	return nil
}

func writeSearchJSON(cmd *cobra.Command, resp *aggregate.Response, limit int) error {
	trimmed := *resp
	if limit > 0 && len(trimmed.Results) > limit {
		trimmed.Results = trimmed.Results[:limit]
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(trimmed)
}
