// Package cmd provides the CLI commands for settingsearch.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/settingsearch/internal/config"
	"github.com/Aman-CERP/settingsearch/internal/logging"
	"github.com/Aman-CERP/settingsearch/internal/profiling"
	"github.com/Aman-CERP/settingsearch/pkg/version"
)

// Global flags
var (
	configDir      string
	debugMode      bool
	profileOpts    profiling.Options
	profileSession *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for settingsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settingsearch",
		Short: "Search device settings by name, summary or keyword",
		Long: `settingsearch indexes declarative settings descriptors into a local
SQLite database and answers ranked queries against it, merged with
installed apps, accessibility services and input devices.

Run 'settingsearch index' once, then 'settingsearch search <query>'
or 'settingsearch serve' to expose the search over MCP.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("settingsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory searched for .settingsearch.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and the log file")

	cmd.PersistentFlags().StringVar(&profileOpts.CPUPath, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&profileOpts.HeapPath, "memprofile", "", "Write a heap profile to this file on exit")
	cmd.PersistentFlags().StringVar(&profileOpts.TracePath, "trace", "", "Write an execution trace to this file")
	_ = cmd.PersistentFlags().MarkHidden("trace")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = func(c *cobra.Command, args []string) error {
		err := stopProfiling()
		if logErr := stopLogging(c, args); logErr != nil && err == nil {
			err = logErr
		}
		return err
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the effective configuration for the current flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if debugMode {
		cfg.Server.LogLevel = "debug"
	}
	return cfg, nil
}

// startLogging installs file logging for CLI commands. Logging failures
// are not fatal for the command itself.
func startLogging(cfg *config.Config) {
	logCfg := logging.DefaultConfig(cfg.Paths.DataDir)
	logCfg.Level = cfg.Server.LogLevel
	logCfg.WriteToStderr = debugMode

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		slog.Debug("logging_setup_failed", slog.String("error", err.Error()))
		return
	}
	loggingCleanup = cleanup
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profileSession = s
	return nil
}

func stopProfiling() error {
	if profileSession == nil {
		return nil
	}
	err := profileSession.Stop()
	profileSession = nil
	return err
}
