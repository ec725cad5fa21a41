package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mcoot/arcade-judge/internal/services/settlement"
)

// Cron triggers settlement runs on a standard five-field schedule evaluated in UTC
type Cron struct {
	cron     *cron.Cron
	schedule cron.Schedule
	runner   *Runner
	logger   *slog.Logger
}

// NewCron registers the runner under a five-field cron expression, which is validated here.
func NewCron(ctx context.Context, runner *Runner, spec string, logger *slog.Logger) (*Cron, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s := &Cron{cron: c, schedule: schedule, runner: runner, logger: logger}
	c.Schedule(schedule, cron.FuncJob(func() { s.fire(ctx) }))
	return s, nil
}

func (s *Cron) fire(ctx context.Context) {
	_, err := s.runner.RunOnce(ctx, settlement.RunOptions{})
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn("previous settlement still running; skipping tick")
	case err != nil:
		s.logger.Error("scheduled settlement failed", slog.String("error", err.Error()))
	}
}

// Next returns the first scheduled run time after t
func (s *Cron) Next(t time.Time) time.Time {
	return s.schedule.Next(t.UTC())
}

// Run starts the scheduler and blocks until ctx is done, then waits for an
// in-flight run to finish
func (s *Cron) Run(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Time("next_run", s.Next(time.Now())))

	<-ctx.Done()
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// cronLogger adapts slog to the cron logger interface
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
