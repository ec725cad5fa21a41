package ranking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/arcade-judge/internal/config"
	"github.com/mcoot/arcade-judge/internal/dependencies/mocks"
	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/retry"
	"github.com/mcoot/arcade-judge/internal/services/notify"
	"github.com/mcoot/arcade-judge/internal/services/ranking"
	"github.com/mcoot/arcade-judge/internal/storage"
	"github.com/mcoot/arcade-judge/internal/storage/memory"
	testlog "github.com/mcoot/arcade-judge/internal/testutil"
)

const dailyKey model.PeriodKey = "daily:2026-10-15"

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	metrics *metrics.Metrics
	service *ranking.Service
	table   model.RewardTable
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC))
	s.metrics = metrics.New()
	s.ctx = context.Background()
	s.table = config.DefaultRewards().Daily

	ids := mocks.NewMockIDs()
	logger := testlog.NopLogger()
	emitter := notify.New(s.storage, s.clock, ids, s.metrics, logger)

	cfg := ranking.DefaultConfig()
	cfg.Retry = retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	s.service = ranking.New(s.storage, emitter, s.clock, ids, cfg, s.metrics, logger)
}

func (s *ServiceSuite) seed(scores ...int64) []*model.User {
	for i, score := range scores {
		id := model.UserID(string(rune('a' + i)))
		s.Require().NoError(s.storage.SaveUser(s.ctx, &model.User{ID: id, Balance: 100, ScoreDaily: score}))
	}
	users, err := s.storage.ListUsers(s.ctx)
	s.Require().NoError(err)
	return users
}

func (s *ServiceSuite) user(id model.UserID) *model.User {
	u, err := s.storage.GetUser(s.ctx, id)
	s.Require().NoError(err)
	return u
}

func (s *ServiceSuite) TestThreeParticipants() {
	users := s.seed(20, 30, 10)

	summary, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)
	s.Equal(3, summary.Participants)
	s.Equal(3, summary.Rewarded)
	s.Equal(3, summary.Reset)
	s.Empty(summary.Failures)

	// b=30 first, a=20 second, c=10 third
	s.Equal(int64(10), s.user("b").ReputationPoints)
	s.Equal(int64(103), s.user("b").Balance)
	s.Equal(int64(7), s.user("a").ReputationPoints)
	s.Equal(int64(102), s.user("a").Balance)
	s.Equal(int64(5), s.user("c").ReputationPoints)
	s.Equal(int64(101), s.user("c").Balance)

	for _, id := range []model.UserID{"a", "b", "c"} {
		s.Equal(int64(0), s.user(id).ScoreDaily)

		ledger, _ := s.storage.GetLedger(s.ctx, id)
		s.Require().Len(ledger, 1)

		msgs, _ := s.storage.GetNotifications(s.ctx, id)
		s.Require().Len(msgs, 1)
		s.Contains(msgs[0].Title, "Daily")
	}

	ledger, _ := s.storage.GetLedger(s.ctx, "b")
	s.Equal(int64(3), ledger[0].Amount)
	s.Equal("reward:daily:rank1", ledger[0].Reason)

	plan, err := s.storage.GetSettlementPlan(s.ctx, dailyKey)
	s.Require().NoError(err)
	s.True(plan.Completed)

	s.Equal(3.0, testutil.ToFloat64(s.metrics.RewardsIssued.WithLabelValues("daily")))
	s.Equal(6.0, testutil.ToFloat64(s.metrics.CurrencyAwarded.WithLabelValues("daily")))
}

func (s *ServiceSuite) TestRewardConservation() {
	users := s.seed(9, 8, 7, 6, 5, 4, 3)

	summary, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)
	s.Equal(7, summary.Participants)
	s.Equal(5, summary.Rewarded)
	s.Equal(7, summary.Reset)

	var rep, balance int64
	for _, u := range users {
		got := s.user(u.ID)
		rep += got.ReputationPoints
		balance += got.Balance - 100
		s.Equal(int64(0), got.ScoreDaily)
	}
	s.Equal(int64(10+7+5+3+1), rep)
	s.Equal(int64(3+2+1), balance)

	// Ranks 4 and 5 get reputation but no currency, so no ledger entry
	ledger, _ := s.storage.GetLedger(s.ctx, "d")
	s.Empty(ledger)
	s.Equal(int64(3), s.user("d").ReputationPoints)
}

func (s *ServiceSuite) TestNonParticipantsUntouched() {
	users := s.seed(0, 4)

	summary, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)
	s.Equal(1, summary.Participants)

	a := s.user("a")
	s.Equal(int64(1), a.Version)
	s.Equal(int64(0), a.ReputationPoints)
}

func (s *ServiceSuite) TestNoParticipantsCompletesPlan() {
	users := s.seed(0, 0)

	summary, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)
	s.Equal(0, summary.Participants)
	s.Empty(summary.Awards)

	plan, _ := s.storage.GetSettlementPlan(s.ctx, dailyKey)
	s.True(plan.Completed)
}

func (s *ServiceSuite) TestRerunDoesNotPayTwice() {
	users := s.seed(20, 30, 10)

	_, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)

	summary, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)
	s.True(summary.AlreadyDone)
	s.Equal(int64(10), s.user("b").ReputationPoints)
	s.Equal(int64(103), s.user("b").Balance)
}

func (s *ServiceSuite) TestResumeAfterPartialFailure() {
	users := s.seed(20, 30, 10)

	s.storage.FailCommit = func(b *storage.Batch) error {
		for _, op := range b.Ops() {
			if op.Kind == storage.OpMarkRewarded && op.UserID == "a" {
				return errors.New("store unavailable")
			}
		}
		return nil
	}

	first, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)
	s.Equal(2, first.Rewarded)
	s.Require().Len(first.Failures, 1)
	s.Equal(model.UserID("a"), first.Failures[0].UserID)
	s.Equal(int64(0), s.user("a").ReputationPoints)

	plan, _ := s.storage.GetSettlementPlan(s.ctx, dailyKey)
	s.False(plan.Completed)

	// Scores were reset, but the frozen plan still knows who won
	s.storage.FailCommit = nil
	refreshed, _ := s.storage.ListUsers(s.ctx)
	second, err := s.service.SettlePeriod(s.ctx, refreshed, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)
	s.True(second.Resumed)
	s.Equal(3, second.Rewarded)
	s.Empty(second.Failures)

	s.Equal(int64(7), s.user("a").ReputationPoints)
	s.Equal(int64(10), s.user("b").ReputationPoints)
	s.Equal(int64(103), s.user("b").Balance)

	plan, _ = s.storage.GetSettlementPlan(s.ctx, dailyKey)
	s.True(plan.Completed)
}

func (s *ServiceSuite) TestResetIsolatesMissingUser() {
	users := s.seed(5, 4)
	users = append(users, &model.User{ID: "ghost", ScoreDaily: 1})

	summary, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)
	s.Equal(2, summary.Reset)

	failed := map[model.UserID]bool{}
	for _, f := range summary.Failures {
		failed[f.UserID] = true
	}
	s.True(failed["ghost"])
	s.Equal(int64(0), s.user("a").ScoreDaily)
	s.Equal(int64(0), s.user("b").ScoreDaily)
}

func (s *ServiceSuite) TestSeparateKeysSettleIndependently() {
	users := s.seed(3)

	_, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, dailyKey)
	s.Require().NoError(err)

	// Next day the user scores again
	u := s.user("a")
	u.ScoreDaily = 2
	s.Require().NoError(s.storage.SaveUser(s.ctx, u))
	users, _ = s.storage.ListUsers(s.ctx)

	summary, err := s.service.SettlePeriod(s.ctx, users, model.PeriodDaily, s.table, "daily:2026-10-16")
	s.Require().NoError(err)
	s.False(summary.AlreadyDone)
	s.Equal(int64(20), s.user("a").ReputationPoints)
}
