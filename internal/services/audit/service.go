package audit

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/arcade-judge/internal/dependencies/clock"
	"github.com/mcoot/arcade-judge/internal/dependencies/ids"
	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/retry"
	"github.com/mcoot/arcade-judge/internal/services/notify"
	"github.com/mcoot/arcade-judge/internal/storage"
)

// Config holds the auditor's reconciliation settings
type Config struct {
	// Tolerance is the largest |balance - expected| accepted as replication lag
	Tolerance int64
	// SeedGrant is the audited balance assumed for never-audited users
	SeedGrant int64
	// Workers bounds how many users are reconciled concurrently
	Workers int
	Retry   retry.Policy
}

// DefaultConfig returns the production audit settings
func DefaultConfig() Config {
	return Config{
		Tolerance: 5,
		SeedGrant: model.DefaultSeedGrant,
		Workers:   8,
		Retry:     retry.DefaultPolicy(),
	}
}

// reservedWrites are the non-ledger writes of an audit batch:
// balances, audit report, notification
const reservedWrites = 3

// Service reconciles live balances against the ledger
type Service struct {
	storage storage.Storage
	emitter *notify.Emitter
	clock   clock.Clock
	ids     ids.Generator
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new audit Service
func New(
	storage storage.Storage,
	emitter *notify.Emitter,
	clock clock.Clock,
	ids ids.Generator,
	cfg Config,
	metrics *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Service{
		storage: storage,
		emitter: emitter,
		clock:   clock,
		ids:     ids,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// AuditAll reconciles every user on a bounded worker pool and returns once all
// of them are done. Outcomes are in input order; failures are recorded as skipped.
func (s *Service) AuditAll(ctx context.Context, users []*model.User) []model.AuditOutcome {
	outcomes := make([]model.AuditOutcome, len(users))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, u := range users {
		g.Go(func() error {
			outcomes[i], _ = s.Reconcile(ctx, u.ID)
			return nil
		})
	}
	_ = g.Wait()

	corrected, skipped := 0, 0
	for _, o := range outcomes {
		switch o.Status {
		case model.AuditCorrected:
			corrected++
		case model.AuditSkipped:
			skipped++
		}
	}
	s.logger.Info("audit complete",
		slog.Int("users", len(users)),
		slog.Int("corrected", corrected),
		slog.Int("skipped", skipped),
	)
	return outcomes
}

// Reconcile folds a user's pending ledger entries into their audited balance.
// The returned error is also recorded in the outcome, which is marked skipped.
func (s *Service) Reconcile(ctx context.Context, id model.UserID) (model.AuditOutcome, error) {
	var outcome model.AuditOutcome
	err := retry.Do(ctx, s.cfg.Retry, func() error {
		var err error
		outcome, err = s.reconcileOnce(ctx, id)
		return err
	})
	if err != nil {
		s.metrics.AuditFailures.Inc()
		s.logger.Error("failed to audit user",
			slog.String("user_id", string(id)),
			slog.String("error", err.Error()),
		)
		return model.AuditOutcome{UserID: id, Status: model.AuditSkipped, Err: err}, err
	}

	s.metrics.UsersAudited.Inc()
	s.metrics.LedgerConsumed.Add(float64(outcome.EntriesConsumed))
	if outcome.Corrected() {
		s.metrics.AuditCorrections.Inc()
		s.logger.Warn("balance diverged from ledger; corrected",
			slog.String("user_id", string(id)),
			slog.Int64("claimed_balance", outcome.ClaimedBalance),
			slog.Int64("computed_balance", outcome.CorrectedBalance),
		)
	}
	return outcome, nil
}

func (s *Service) reconcileOnce(ctx context.Context, id model.UserID) (model.AuditOutcome, error) {
	user, err := s.storage.GetUser(ctx, id)
	if err != nil {
		return model.AuditOutcome{}, err
	}
	entries, err := s.storage.GetLedger(ctx, id)
	if err != nil {
		return model.AuditOutcome{}, err
	}

	d := Decide(user, entries, s.cfg.Tolerance, s.cfg.SeedGrant, storage.MaxBatchWrites-reservedWrites)

	// Balance rewrite and entry deletion commit together or not at all
	batch := storage.NewBatch()
	batch.Guard(user)
	batch.SetBalances(id, d.Expected, d.NewAudited)
	for _, e := range d.Consumed {
		batch.DeleteLedger(id, e.ID)
	}
	if d.Diverged {
		batch.AppendAuditReport(model.AuditReport{
			ID:              model.AuditReportID(s.ids.NewID()),
			UserID:          id,
			ClaimedBalance:  user.Balance,
			ComputedBalance: d.Expected,
			Reason:          model.ReasonLedgerDivergence,
			CreatedAt:       s.clock.Now(),
		})
		s.emitter.Stage(batch, id, s.emitter.AuditCorrection(user.Balance, d.Expected))
	}

	if err := s.storage.Commit(ctx, batch); err != nil {
		return model.AuditOutcome{}, err
	}

	status := model.AuditReconciled
	if d.Diverged {
		status = model.AuditCorrected
	}
	return model.AuditOutcome{
		UserID:           id,
		Status:           status,
		ClaimedBalance:   user.Balance,
		CorrectedBalance: d.Expected,
		EntriesConsumed:  len(d.Consumed),
	}, nil
}
