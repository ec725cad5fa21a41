package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/arcade-judge/internal/config"
)

var (
	opts     *Options
	settings config.Config
	logger   *slog.Logger
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts = DefaultOptions()

	rootCmd := &cobra.Command{
		Use:   "judge",
		Short: "Ledger reconciliation and seasonal reward settlement",
		Long: `judge audits every user's balance against their transaction ledger, then
ranks the daily, weekly and monthly leaderboards that are due and pays out
the reward tables.

Configuration is read from JUDGE_* environment variables. The store is
selected by JUDGE_STORE_CREDENTIALS.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			settings, err = config.Load()
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				settings.LogLevel = opts.LogLevel
			}

			logger, err = newLogger(cmd.ErrOrStderr(), settings.LogLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", opts.Output, "Output format: text, json")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error (env: JUDGE_LOG_LEVEL)")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDueCmd())
	rootCmd.AddCommand(newReportsCmd())
	rootCmd.AddCommand(newScheduleCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
