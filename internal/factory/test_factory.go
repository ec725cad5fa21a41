package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/mcoot/arcade-judge/internal/config"
	"github.com/mcoot/arcade-judge/internal/dependencies/mocks"
	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/storage"
	"github.com/mcoot/arcade-judge/internal/storage/memory"
	"github.com/mcoot/arcade-judge/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MemoryStore *memory.Storage
	MockClock   *mocks.MockClock
	MockIDs     *mocks.MockIDs

	seeded int
}

// TestSettings returns production defaults with retries disabled
func TestSettings() config.Config {
	return config.Config{
		Credentials:           `{"backend":"memory"}`,
		UTCOffset:             -3 * time.Hour,
		WeeklyDay:             "friday",
		Tolerance:             5,
		SeedGrant:             model.DefaultSeedGrant,
		Workers:               4,
		CommitRetries:         0,
		NotificationRetention: 72 * time.Hour,
	}
}

// NewTestApp creates an App on in-memory storage with a mock clock set to now
func NewTestApp(now time.Time) *TestApp {
	return NewTestAppWithSettings(now, TestSettings())
}

// NewTestAppWithSettings is NewTestApp with explicit settings
func NewTestAppWithSettings(now time.Time, settings config.Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(now)
	mockIDs := mocks.NewMockIDs()

	app := newWithDependencies(store, mockClock, mockIDs, metrics.New(), settings, config.DefaultRewards(), testutil.NopLogger())

	return &TestApp{
		App:         app,
		MemoryStore: store,
		MockClock:   mockClock,
		MockIDs:     mockIDs,
	}
}

// SeedUser stores a user with the given balance and period scores
func (t *TestApp) SeedUser(id model.UserID, balance int64, audited *int64, daily, weekly, monthly int64) *model.User {
	u := &model.User{
		ID:             id,
		DisplayName:    string(id),
		Balance:        balance,
		AuditedBalance: audited,
		ScoreDaily:     daily,
		ScoreWeekly:    weekly,
		ScoreMonthly:   monthly,
	}
	if err := t.Storage.SaveUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

// SeedLedger appends entries to a user's ledger, one second apart in the order given
func (t *TestApp) SeedLedger(id model.UserID, amounts ...int64) {
	batch := storage.NewBatch()
	for i, amount := range amounts {
		batch.AppendLedger(id, model.LedgerEntry{
			ID:        model.LedgerEntryID(fmt.Sprintf("seed-%s-%d", id, t.seeded)),
			Amount:    amount,
			Reason:    "purchase",
			Timestamp: t.MockClock.Now().Add(time.Duration(i) * time.Second),
		})
		t.seeded++
	}
	if err := t.Storage.Commit(context.Background(), batch); err != nil {
		panic(err)
	}
}
