package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/arcade-judge/internal/dependencies/clock"
	"github.com/mcoot/arcade-judge/internal/dependencies/ids"
	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/retry"
	"github.com/mcoot/arcade-judge/internal/services/notify"
	"github.com/mcoot/arcade-judge/internal/storage"
)

// Config holds distributor settings
type Config struct {
	// Workers bounds how many rewards are issued concurrently
	Workers int
	// ResetBatchSize bounds the score resets committed together
	ResetBatchSize int
	Retry          retry.Policy
}

// DefaultConfig returns the production distributor settings
func DefaultConfig() Config {
	return Config{
		Workers:        8,
		ResetBatchSize: storage.MaxBatchWrites,
		Retry:          retry.DefaultPolicy(),
	}
}

// Service ranks a settlement period and issues its rewards
type Service struct {
	storage storage.Storage
	emitter *notify.Emitter
	clock   clock.Clock
	ids     ids.Generator
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new ranking Service
func New(
	store storage.Storage,
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
	if cfg.ResetBatchSize < 1 || cfg.ResetBatchSize > storage.MaxBatchWrites {
		cfg.ResetBatchSize = storage.MaxBatchWrites
	}
	return &Service{
		storage: store,
		emitter: emitter,
		clock:   clock,
		ids:     ids,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// SettlePeriod rewards the top participants of one period occurrence and resets
// every participant's score. The ranking is frozen in a settlement plan first,
// so a re-run for the same key resumes instead of paying twice.
func (s *Service) SettlePeriod(
	ctx context.Context,
	users []*model.User,
	period model.Period,
	table model.RewardTable,
	key model.PeriodKey,
) (model.PeriodSummary, error) {
	summary := model.PeriodSummary{Period: period, Key: key}
	logger := s.logger.With(slog.String("period", string(period)), slog.String("key", string(key)))

	plan, err := s.storage.GetSettlementPlan(ctx, key)
	switch {
	case errors.Is(err, model.ErrPlanNotFound):
		participants, awards := Rank(users, period, table)
		plan = &model.SettlementPlan{
			Key:          key,
			Period:       period,
			Participants: participants,
			Awards:       awards,
			CreatedAt:    s.clock.Now(),
		}
		if err := s.storage.SaveSettlementPlan(ctx, plan); err != nil {
			return summary, fmt.Errorf("save settlement plan: %w", err)
		}
	case err != nil:
		return summary, fmt.Errorf("load settlement plan: %w", err)
	default:
		summary.Resumed = true
	}

	summary.Participants = len(plan.Participants)
	summary.Awards = plan.Awards

	if plan.Completed {
		summary.AlreadyDone = true
		logger.Info("period already settled; skipping")
		return summary, nil
	}

	rewarded, err := s.storage.GetRewardedUsers(ctx, key)
	if err != nil {
		return summary, fmt.Errorf("load rewarded users: %w", err)
	}

	var (
		mu       sync.Mutex
		failures []model.UserFailure
		issued   int
	)
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, award := range plan.Awards {
		if rewarded[award.UserID] {
			issued++
			continue
		}
		g.Go(func() error {
			err := s.issueReward(ctx, period, key, award)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, model.UserFailure{UserID: award.UserID, Err: err})
				return nil
			}
			issued++
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failures {
		s.metrics.RewardFailures.WithLabelValues(string(period)).Inc()
		logger.Error("failed to issue reward",
			slog.String("user_id", string(f.UserID)),
			slog.String("error", f.Err.Error()),
		)
	}

	reset, resetFailures := s.resetScores(ctx, period, plan.Participants)
	for _, f := range resetFailures {
		s.metrics.RewardFailures.WithLabelValues(string(period)).Inc()
		logger.Error("failed to reset score",
			slog.String("user_id", string(f.UserID)),
			slog.String("error", f.Err.Error()),
		)
	}

	summary.Rewarded = issued
	summary.Reset = reset
	summary.Failures = append(failures, resetFailures...)

	// An incomplete plan is picked up again by the next run for this key
	if len(summary.Failures) == 0 {
		plan.Completed = true
		plan.CompletedAt = s.clock.Now()
		if err := s.storage.SaveSettlementPlan(ctx, plan); err != nil {
			return summary, fmt.Errorf("complete settlement plan: %w", err)
		}
	}

	logger.Info("period settled",
		slog.Int("participants", summary.Participants),
		slog.Int("rewarded", summary.Rewarded),
		slog.Int("reset", summary.Reset),
		slog.Int("failures", len(summary.Failures)),
		slog.Bool("resumed", summary.Resumed),
	)
	return summary, nil
}

// issueReward credits one award in a single batch: reputation, currency through
// the ledger, outbox message, and the rewarded marker
func (s *Service) issueReward(ctx context.Context, period model.Period, key model.PeriodKey, award model.Award) error {
	attempt := 0
	return retry.Do(ctx, s.cfg.Retry, func() error {
		attempt++
		if attempt > 1 {
			// A failed commit may still have landed
			rewarded, err := s.storage.GetRewardedUsers(ctx, key)
			if err != nil {
				return err
			}
			if rewarded[award.UserID] {
				return nil
			}
		}

		batch := storage.NewBatch()
		batch.Increment(award.UserID, award.Reputation, award.Currency)
		if award.Currency > 0 {
			batch.AppendLedger(award.UserID, model.LedgerEntry{
				ID:        model.LedgerEntryID(s.ids.NewID()),
				Amount:    award.Currency,
				Reason:    RewardReason(period, award.Rank),
				Timestamp: s.clock.Now(),
			})
		}
		s.emitter.Stage(batch, award.UserID, s.emitter.Reward(period, award))
		batch.MarkRewarded(key, award.UserID)

		if err := s.storage.Commit(ctx, batch); err != nil {
			return err
		}

		s.metrics.RewardsIssued.WithLabelValues(string(period)).Inc()
		s.metrics.ReputationAwarded.WithLabelValues(string(period)).Add(float64(award.Reputation))
		s.metrics.CurrencyAwarded.WithLabelValues(string(period)).Add(float64(award.Currency))
		return nil
	})
}

// resetScores zeroes the period score of every participant in bounded batches.
// Zeroing an already-zero score is a no-op, so re-running is safe.
func (s *Service) resetScores(ctx context.Context, period model.Period, participants []model.UserID) (int, []model.UserFailure) {
	var (
		reset    int
		failures []model.UserFailure
	)

	for start := 0; start < len(participants); start += s.cfg.ResetBatchSize {
		chunk := participants[start:min(start+s.cfg.ResetBatchSize, len(participants))]

		if err := s.commitResets(ctx, period, chunk); err != nil {
			// Isolate the failing users so one bad record does not block the chunk
			for _, id := range chunk {
				if err := s.commitResets(ctx, period, []model.UserID{id}); err != nil {
					failures = append(failures, model.UserFailure{UserID: id, Err: err})
					continue
				}
				reset++
				s.metrics.ScoresReset.WithLabelValues(string(period)).Inc()
			}
			continue
		}

		reset += len(chunk)
		s.metrics.ScoresReset.WithLabelValues(string(period)).Add(float64(len(chunk)))
	}
	return reset, failures
}

func (s *Service) commitResets(ctx context.Context, period model.Period, ids []model.UserID) error {
	return retry.Do(ctx, s.cfg.Retry, func() error {
		batch := storage.NewBatch()
		for _, id := range ids {
			batch.ResetScore(id, period)
		}
		return s.storage.Commit(ctx, batch)
	})
}

// RewardReason is the ledger reason tag for a ranked reward
func RewardReason(period model.Period, rank int) string {
	return fmt.Sprintf("reward:%s:rank%d", period, rank)
}
