package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldLedger(t *testing.T) {
	tests := []struct {
		name    string
		audited int64
		amounts []int64
		want    int64
	}{
		{name: "no entries", audited: 5, want: 5},
		{name: "credits", audited: 5, amounts: []int64{3, 2}, want: 10},
		{name: "debits", audited: 20, amounts: []int64{-7, 1, -4}, want: 10},
		{name: "negative result", audited: 0, amounts: []int64{-3}, want: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]LedgerEntry, len(tt.amounts))
			for i, a := range tt.amounts {
				entries[i] = LedgerEntry{Amount: a}
			}
			assert.Equal(t, tt.want, FoldLedger(tt.audited, entries))
		})
	}
}

func TestAuditedOrSeed(t *testing.T) {
	u := &User{}
	assert.Equal(t, DefaultSeedGrant, u.AuditedOrSeed(DefaultSeedGrant))

	zero := int64(0)
	u.AuditedBalance = &zero
	assert.Equal(t, int64(0), u.AuditedOrSeed(DefaultSeedGrant))
}

func TestUserCloneIsDeep(t *testing.T) {
	audited := int64(7)
	u := &User{ID: "alice", AuditedBalance: &audited}

	c := u.Clone()
	*c.AuditedBalance = 99
	c.ScoreDaily = 3

	assert.Equal(t, int64(7), *u.AuditedBalance)
	assert.Equal(t, int64(0), u.ScoreDaily)
}

func TestUserScores(t *testing.T) {
	u := &User{}
	for i, p := range AllPeriods {
		u.SetScore(p, int64(i+1))
	}
	assert.Equal(t, int64(1), u.ScoreDaily)
	assert.Equal(t, int64(2), u.ScoreWeekly)
	assert.Equal(t, int64(3), u.ScoreMonthly)
	assert.Equal(t, int64(2), u.Score(PeriodWeekly))
	assert.Equal(t, int64(0), u.Score("yearly"))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("monthly")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonthly, p)
	assert.Equal(t, "Monthly", p.Title())
	assert.Equal(t, "scoreMonthly", p.ScoreField())

	_, err = ParsePeriod("yearly")
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestNewPeriodKey(t *testing.T) {
	local := time.Date(2026, 10, 16, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, PeriodKey("weekly:2026-10-16"), NewPeriodKey(PeriodWeekly, local))
}

func TestNotificationExpired(t *testing.T) {
	cutoff := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		n    Notification
		want bool
	}{
		{name: "unread", n: Notification{}, want: false},
		{name: "read without timestamp", n: Notification{Read: true}, want: false},
		{name: "read before cutoff", n: Notification{Read: true, ReadAt: cutoff.Add(-time.Second)}, want: true},
		{name: "read at cutoff", n: Notification{Read: true, ReadAt: cutoff}, want: false},
		{name: "read after cutoff", n: Notification{Read: true, ReadAt: cutoff.Add(time.Hour)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.n.Expired(cutoff))
		})
	}
}

func TestRewardTable(t *testing.T) {
	table := RewardTable{
		Reputation: []int64{10, 7, 5, 3, 1},
		Currency:   []int64{3, 2, 1},
	}

	assert.Equal(t, int64(10), table.ReputationFor(0))
	assert.Equal(t, int64(1), table.ReputationFor(4))
	assert.Equal(t, int64(0), table.ReputationFor(5))
	assert.Equal(t, int64(0), table.ReputationFor(-1))

	assert.Equal(t, int64(3), table.CurrencyFor(0))
	assert.Equal(t, int64(1), table.CurrencyFor(2))
	assert.Equal(t, int64(0), table.CurrencyFor(3))

	short := RewardTable{Reputation: []int64{10}}
	assert.Equal(t, int64(0), short.ReputationFor(1))
	assert.Equal(t, int64(0), short.CurrencyFor(0))
}
