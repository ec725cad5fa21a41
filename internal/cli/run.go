package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/arcade-judge/internal/dependencies/clock"
	"github.com/mcoot/arcade-judge/internal/services/settlement"
)

func newRunCmd() *cobra.Command {
	var (
		now       string
		auditOnly bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one settlement: audit, then distribute due periods",
		Long: `Run one settlement invocation.

Every user's balance is reconciled against their ledger first. Once the audit
has finished for everyone, each due period (daily, weekly on the configured
weekday, monthly on the 1st, in local time) is ranked, rewarded and reset.
Users that fail are logged and skipped; the command still exits 0.

Re-running for the same local date resumes an interrupted settlement and
never pays a period twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var clk clock.Clock
			if now != "" {
				t, err := time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("--now must be RFC 3339: %w", err)
				}
				clk = clock.Starting(t)
			}

			app, err := buildApp(clk)
			if err != nil {
				logger.Error("failed to start", slog.String("error", err.Error()))
				return err
			}
			defer func() { _ = app.Close() }()

			report, err := app.Runner.RunOnce(cmd.Context(), settlement.RunOptions{AuditOnly: auditOnly})
			if err != nil {
				logger.Error("settlement failed", slog.String("error", err.Error()))
				return err
			}

			NewOutput(opts.Output, cmd.OutOrStdout()).Print(report.View())
			return nil
		},
	}

	cmd.Flags().StringVar(&now, "now", "", "Settle as of this RFC 3339 instant instead of the current time")
	cmd.Flags().BoolVar(&auditOnly, "audit-only", false, "Reconcile balances only; skip rewards and pruning")

	return cmd
}
