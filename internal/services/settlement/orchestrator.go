package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/arcade-judge/internal/config"
	"github.com/mcoot/arcade-judge/internal/dependencies/clock"
	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/services/audit"
	"github.com/mcoot/arcade-judge/internal/services/notify"
	"github.com/mcoot/arcade-judge/internal/services/ranking"
	"github.com/mcoot/arcade-judge/internal/storage"
)

// Config holds the calendar and reward settings of a settlement run
type Config struct {
	UTCOffset time.Duration
	WeeklyDay time.Weekday
	Rewards   config.Rewards
	// NotificationRetention is how long read messages are kept; zero disables pruning
	NotificationRetention time.Duration
}

// DefaultConfig returns the production calendar: UTC-3, weekly on Friday
func DefaultConfig() Config {
	return Config{
		UTCOffset:             -3 * time.Hour,
		WeeklyDay:             time.Friday,
		Rewards:               config.DefaultRewards(),
		NotificationRetention: 72 * time.Hour,
	}
}

// RunOptions adjusts a single invocation
type RunOptions struct {
	// AuditOnly stops after the audit phase
	AuditOnly bool
}

// PeriodResult pairs a period summary with the error that aborted it, if any
type PeriodResult struct {
	model.PeriodSummary
	Err error
}

// Report is the aggregate outcome of one invocation
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	LocalDate  string
	Users      int
	Due        []model.Period
	Audit      []model.AuditOutcome
	Periods    []PeriodResult
	Pruned     int
	Failures   []model.UserFailure
}

// AuditCount returns how many outcomes have the given status
func (r *Report) AuditCount(status model.AuditStatus) int {
	n := 0
	for _, o := range r.Audit {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Orchestrator sequences one settlement invocation: audit every user, then
// distribute each due period, then prune read notifications
type Orchestrator struct {
	storage     storage.Storage
	auditor     *audit.Service
	distributor *ranking.Service
	emitter     *notify.Emitter
	clock       clock.Clock
	cfg         Config
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New creates a new Orchestrator
func New(
	storage storage.Storage,
	auditor *audit.Service,
	distributor *ranking.Service,
	emitter *notify.Emitter,
	clock clock.Clock,
	cfg Config,
	metrics *metrics.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		storage:     storage,
		auditor:     auditor,
		distributor: distributor,
		emitter:     emitter,
		clock:       clock,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger,
	}
}

// Due returns the periods that settle at the given instant under this configuration
func (o *Orchestrator) Due(now time.Time) []model.Period {
	return DuePeriods(now, o.cfg.UTCOffset, o.cfg.WeeklyDay)
}

// Run performs one settlement invocation. Only a failure to snapshot the user
// set is returned as an error; per-user and per-period failures are logged
// and reported.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	now := o.clock.Now()
	local := LocalTime(now, o.cfg.UTCOffset)

	report := &Report{
		StartedAt: now,
		LocalDate: local.Format(time.DateOnly),
		Due:       o.Due(now),
	}
	o.logger.Info("settlement started",
		slog.String("local_date", report.LocalDate),
		slog.Any("due", report.Due),
		slog.Bool("audit_only", opts.AuditOnly),
	)

	// Every phase works from this snapshot
	users, err := o.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	report.Users = len(users)

	// Audit must finish for every user before any reward lands
	report.Audit = o.auditor.AuditAll(ctx, users)
	for _, out := range report.Audit {
		if out.Err != nil {
			report.Failures = append(report.Failures, model.UserFailure{UserID: out.UserID, Err: out.Err})
		}
	}

	if !opts.AuditOnly {
		for _, period := range report.Due {
			key := model.NewPeriodKey(period, local)
			summary, err := o.distributor.SettlePeriod(ctx, users, period, o.cfg.Rewards.For(period), key)
			if err != nil {
				o.logger.Error("failed to settle period",
					slog.String("period", string(period)),
					slog.String("key", string(key)),
					slog.String("error", err.Error()),
				)
			}
			report.Periods = append(report.Periods, PeriodResult{PeriodSummary: summary, Err: err})
			report.Failures = append(report.Failures, summary.Failures...)
		}

		if o.cfg.NotificationRetention > 0 {
			ids := make([]model.UserID, len(users))
			for i, u := range users {
				ids[i] = u.ID
			}
			pruned := o.emitter.PruneRead(ctx, ids, now.Add(-o.cfg.NotificationRetention))
			report.Pruned = pruned.Removed
			report.Failures = append(report.Failures, pruned.Failures...)
		}
	}

	report.FinishedAt = o.clock.Now()
	o.metrics.LastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
	o.metrics.LastRunDuration.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())

	o.logger.Info("settlement finished",
		slog.Int("users", report.Users),
		slog.Int("corrected", report.AuditCount(model.AuditCorrected)),
		slog.Int("failures", len(report.Failures)),
		slog.Int("pruned", report.Pruned),
	)
	return report, nil
}
