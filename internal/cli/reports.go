package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mcoot/arcade-judge/internal/model"
)

func newReportsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List recent audit reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(nil)
			if err != nil {
				logger.Error("failed to start", slog.String("error", err.Error()))
				return err
			}
			defer func() { _ = app.Close() }()

			reports, err := app.Storage.ListAuditReports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if reports == nil {
				reports = []model.AuditReport{}
			}

			NewOutput(opts.Output, cmd.OutOrStdout()).Print(reports)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of reports")

	return cmd
}
