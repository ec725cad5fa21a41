package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mcoot/arcade-judge/internal/admin"
	"github.com/mcoot/arcade-judge/internal/scheduler"
)

func newScheduleCmd() *cobra.Command {
	var (
		spec string
		addr string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run settlements on a cron schedule and serve the admin API",
		Long: `Run settlements on a five-field cron schedule, evaluated in UTC.

The admin server exposes /healthz, /metrics, and /api/v1 endpoints to trigger
a run, inspect the last run, list audit reports and view settlement plans.
Only one run is active at a time; overlapping ticks are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec == "" {
				spec = settings.Schedule
			}
			if addr == "" {
				addr = settings.AdminAddr
			}

			app, err := buildApp(nil)
			if err != nil {
				logger.Error("failed to start", slog.String("error", err.Error()))
				return err
			}
			defer func() { _ = app.Close() }()

			ctx := cmd.Context()
			cron, err := scheduler.NewCron(ctx, app.Runner, spec, logger)
			if err != nil {
				return err
			}

			router := admin.NewRouter(admin.RouterConfig{
				Logger:       logger,
				Storage:      app.Storage,
				Metrics:      app.Metrics,
				Runner:       app.Runner,
				Orchestrator: app.Orchestrator,
				Clock:        app.Clock,
			})
			serverConfig := admin.DefaultServerConfig()
			serverConfig.Addr = addr
			server := admin.NewServer(router, serverConfig, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			cronDone := make(chan struct{})
			cronCtx, stopCron := context.WithCancel(ctx)
			defer stopCron()
			go func() {
				cron.Run(cronCtx)
				close(cronDone)
			}()

			// Wait for shutdown or error
			select {
			case err = <-errCh:
				if err != nil {
					logger.Error("admin server error", slog.String("error", err.Error()))
				}
			case <-ctx.Done():
				logger.Info("shutdown signal received")
				if shutdownErr := server.Shutdown(context.Background()); shutdownErr != nil {
					logger.Error("shutdown error", slog.String("error", shutdownErr.Error()))
					err = shutdownErr
				}
			}

			stopCron()
			<-cronDone
			return err
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Five-field cron spec in UTC (env: JUDGE_SCHEDULE)")
	cmd.Flags().StringVar(&addr, "addr", "", "Admin listen address (env: JUDGE_ADMIN_ADDR)")

	return cmd
}
