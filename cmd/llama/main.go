package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/mitlibraries/llama/pkg/config"
	"github.com/mitlibraries/llama/pkg/params"
)

var (
	cfgFile   string
	logLevel  string
	workspace string
)

var rootCmd = &cobra.Command{
	Use:           "llama",
	Short:         "Alma acquisitions and export tooling for MIT Libraries",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Show help when no subcommand is provided
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is "+config.DefaultFile()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace (dev, stage, prod)")

	rootCmd.AddCommand(concatTimdexExportCmd)
	rootCmd.AddCommand(ccSlipsCmd)
	rootCmd.AddCommand(sapInvoicesCmd)
	rootCmd.AddCommand(sapSequenceHistoryCmd)
	rootCmd.AddCommand(inspectSAPFileCmd)
	rootCmd.AddCommand(loadSampleDataCmd)
}

func openParams(ctx context.Context, region string) (config.ParamReader, error) {
	store, err := params.New(ctx, region, "")
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "llama",
	})
	if lvl, err := log.ParseLevel(strings.ToLower(level)); err == nil {
		logger.SetLevel(lvl)
	} else if level != "" {
		logger.Warn("unknown log level, using info", "level", level)
	}
	return logger
}

// setup builds the configuration and logger every subcommand starts from.
func setup(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Build(cmd.Context(), cfgFile, cmd.Flags(), openParams)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg.LogLevel)
	logger.Info("configuration loaded", "workspace", cfg.Workspace, "log_level", logger.GetLevel())

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Workspace,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
		logger.Info("sentry initialized", "env", cfg.Workspace)
	} else {
		logger.Debug("no sentry DSN configured, not initializing sentry")
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
