package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/settingsearch/internal/output"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage recent queries",
		Long: `List, search and clear the recent queries list.

Queries are saved with 'settingsearch search --record' or the
record_query MCP tool. The list keeps the most recent history.capacity
queries; saving a query again moves it to the top.`,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistorySuggestCmd())
	cmd.AddCommand(newHistoryClearCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent queries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				queries, err := a.service.RecentQueries(ctx, limit)
				if err != nil {
					return err
				}
				printQueries(cmd, queries)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of queries")

	return cmd
}

func newHistorySuggestCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "List recent queries starting with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				queries, err := a.service.Suggest(ctx, args[0], limit)
				if err != nil {
					return err
				}
				printQueries(cmd, queries)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of suggestions")

	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.service.ClearHistory(ctx); err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Success("Recent queries cleared")
				return nil
			})
		},
	}
}

func printQueries(cmd *cobra.Command, queries []string) {
	out := output.New(cmd.OutOrStdout())
	if len(queries) == 0 {
		out.Status("", "No saved queries")
		return
	}
	out.List(queries)
}

// withApp loads the configuration, opens the app and runs fn.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	startLogging(cfg)

	a, err := openApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open settings index: %w", err)
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}
