package audit_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/arcade-judge/internal/dependencies/mocks"
	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/retry"
	"github.com/mcoot/arcade-judge/internal/services/audit"
	"github.com/mcoot/arcade-judge/internal/services/notify"
	"github.com/mcoot/arcade-judge/internal/storage"
	"github.com/mcoot/arcade-judge/internal/storage/memory"
	testlog "github.com/mcoot/arcade-judge/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	ids     *mocks.MockIDs
	metrics *metrics.Metrics
	logs    *testlog.LogBuffer
	service *audit.Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC))
	s.ids = mocks.NewMockIDs()
	s.metrics = metrics.New()
	s.ctx = context.Background()

	var logger *slog.Logger
	logger, s.logs = testlog.CaptureLogger()
	emitter := notify.New(s.storage, s.clock, s.ids, s.metrics, logger)

	cfg := audit.DefaultConfig()
	cfg.Retry = retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	s.service = audit.New(s.storage, emitter, s.clock, s.ids, cfg, s.metrics, logger)
}

func (s *ServiceSuite) seedUser(id model.UserID, balance int64, auditedBalance *int64, amounts ...int64) {
	s.Require().NoError(s.storage.SaveUser(s.ctx, &model.User{ID: id, Balance: balance, AuditedBalance: auditedBalance}))
	if len(amounts) == 0 {
		return
	}
	batch := storage.NewBatch()
	for i, a := range amounts {
		batch.AppendLedger(id, model.LedgerEntry{
			ID:        model.LedgerEntryID(fmt.Sprintf("%s-e%d", id, i)),
			Amount:    a,
			Reason:    "purchase",
			Timestamp: s.clock.Now().Add(time.Duration(i) * time.Second),
		})
	}
	s.Require().NoError(s.storage.Commit(s.ctx, batch))
}

func ptr(v int64) *int64 { return &v }

func (s *ServiceSuite) TestTamperedBalanceIsCorrected() {
	s.seedUser("alice", 50, ptr(5), 3, 2)

	outcome, err := s.service.Reconcile(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.AuditCorrected, outcome.Status)
	s.Equal(int64(50), outcome.ClaimedBalance)
	s.Equal(int64(10), outcome.CorrectedBalance)
	s.Equal(2, outcome.EntriesConsumed)

	u, _ := s.storage.GetUser(s.ctx, "alice")
	s.Equal(int64(10), u.Balance)
	s.Equal(int64(10), *u.AuditedBalance)

	ledger, _ := s.storage.GetLedger(s.ctx, "alice")
	s.Empty(ledger)

	reports, _ := s.storage.ListAuditReports(s.ctx, 0)
	s.Require().Len(reports, 1)
	s.Equal(model.UserID("alice"), reports[0].UserID)
	s.Equal(int64(50), reports[0].ClaimedBalance)
	s.Equal(int64(10), reports[0].ComputedBalance)
	s.Equal(model.ReasonLedgerDivergence, reports[0].Reason)

	msgs, _ := s.storage.GetNotifications(s.ctx, "alice")
	s.Require().Len(msgs, 1)
	s.Equal("Balance reconciled", msgs[0].Title)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.AuditCorrections))
	s.Contains(s.logs.Messages(slog.LevelWarn), "balance diverged from ledger; corrected")
}

func (s *ServiceSuite) TestSecondRunIsNoOp() {
	s.seedUser("alice", 50, ptr(5), 3, 2)
	_, err := s.service.Reconcile(s.ctx, "alice")
	s.Require().NoError(err)

	outcome, err := s.service.Reconcile(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.AuditReconciled, outcome.Status)
	s.Equal(0, outcome.EntriesConsumed)

	u, _ := s.storage.GetUser(s.ctx, "alice")
	s.Equal(int64(10), u.Balance)
	s.Equal(int64(10), *u.AuditedBalance)

	reports, _ := s.storage.ListAuditReports(s.ctx, 0)
	s.Len(reports, 1)
}

func (s *ServiceSuite) TestWithinToleranceConverges() {
	// Ledger says 10; the live balance lags by 4
	s.seedUser("alice", 6, ptr(5), 3, 2)

	outcome, err := s.service.Reconcile(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.AuditReconciled, outcome.Status)

	u, _ := s.storage.GetUser(s.ctx, "alice")
	s.Equal(int64(10), u.Balance)
	s.Equal(int64(10), *u.AuditedBalance)

	reports, _ := s.storage.ListAuditReports(s.ctx, 0)
	s.Empty(reports)
	msgs, _ := s.storage.GetNotifications(s.ctx, "alice")
	s.Empty(msgs)
}

func (s *ServiceSuite) TestNeverAuditedUserUsesSeedGrant() {
	s.seedUser("alice", 8, nil, 3)

	outcome, err := s.service.Reconcile(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.AuditReconciled, outcome.Status)

	u, _ := s.storage.GetUser(s.ctx, "alice")
	s.Require().NotNil(u.AuditedBalance)
	s.Equal(int64(8), *u.AuditedBalance)
}

func (s *ServiceSuite) TestLongLedgerIsConsumedAcrossRuns() {
	n := storage.MaxBatchWrites + 100
	amounts := make([]int64, n)
	for i := range amounts {
		amounts[i] = 1
	}
	s.Require().NoError(s.storage.SaveUser(s.ctx, &model.User{ID: "alice", Balance: int64(n), AuditedBalance: ptr(0)}))
	for start := 0; start < n; start += storage.MaxBatchWrites {
		batch := storage.NewBatch()
		for i := start; i < min(start+storage.MaxBatchWrites, n); i++ {
			batch.AppendLedger("alice", model.LedgerEntry{
				ID:        model.LedgerEntryID(fmt.Sprintf("e%04d", i)),
				Amount:    1,
				Timestamp: s.clock.Now().Add(time.Duration(i) * time.Second),
			})
		}
		s.Require().NoError(s.storage.Commit(s.ctx, batch))
	}

	first, err := s.service.Reconcile(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.AuditReconciled, first.Status)
	s.Less(first.EntriesConsumed, n)

	// The invariant holds with entries still pending
	u, _ := s.storage.GetUser(s.ctx, "alice")
	ledger, _ := s.storage.GetLedger(s.ctx, "alice")
	s.Equal(u.Balance, model.FoldLedger(*u.AuditedBalance, ledger))

	second, err := s.service.Reconcile(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(n, first.EntriesConsumed+second.EntriesConsumed)

	u, _ = s.storage.GetUser(s.ctx, "alice")
	s.Equal(int64(n), *u.AuditedBalance)
}

func (s *ServiceSuite) TestConflictIsRetried() {
	s.seedUser("alice", 50, ptr(5), 3, 2)

	attempts := 0
	s.storage.FailCommit = func(*storage.Batch) error {
		attempts++
		if attempts == 1 {
			return model.ErrVersionConflict
		}
		return nil
	}

	outcome, err := s.service.Reconcile(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.AuditCorrected, outcome.Status)
	s.Equal(2, attempts)

	reports, _ := s.storage.ListAuditReports(s.ctx, 0)
	s.Len(reports, 1)
}

func (s *ServiceSuite) TestFailureLeavesUserUntouched() {
	s.seedUser("alice", 50, ptr(5), 3, 2)
	boom := errors.New("store unavailable")
	s.storage.FailCommit = func(*storage.Batch) error { return boom }

	outcome, err := s.service.Reconcile(s.ctx, "alice")
	s.ErrorIs(err, boom)
	s.Equal(model.AuditSkipped, outcome.Status)
	s.ErrorIs(outcome.Err, boom)

	u, _ := s.storage.GetUser(s.ctx, "alice")
	s.Equal(int64(50), u.Balance)
	s.Equal(int64(5), *u.AuditedBalance)
	ledger, _ := s.storage.GetLedger(s.ctx, "alice")
	s.Len(ledger, 2)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AuditFailures))
}

func (s *ServiceSuite) TestAuditAllIsolatesFailures() {
	s.seedUser("alice", 50, ptr(5), 3, 2)
	s.seedUser("bob", 5, ptr(5))
	s.seedUser("carol", 7, ptr(7))

	boom := errors.New("store unavailable")
	s.storage.FailCommit = func(b *storage.Batch) error {
		if b.Ops()[0].UserID == "bob" {
			return boom
		}
		return nil
	}

	users, _ := s.storage.ListUsers(s.ctx)
	outcomes := s.service.AuditAll(s.ctx, users)

	s.Require().Len(outcomes, 3)
	s.Equal(model.UserID("alice"), outcomes[0].UserID)
	s.Equal(model.AuditCorrected, outcomes[0].Status)
	s.Equal(model.UserID("bob"), outcomes[1].UserID)
	s.Equal(model.AuditSkipped, outcomes[1].Status)
	s.Equal(model.UserID("carol"), outcomes[2].UserID)
	s.Equal(model.AuditReconciled, outcomes[2].Status)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.UsersAudited))
}

func (s *ServiceSuite) TestMissingUserIsNotRetried() {
	outcome, err := s.service.Reconcile(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrUserNotFound)
	s.Equal(model.AuditSkipped, outcome.Status)
}
