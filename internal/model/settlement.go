package model

import "time"

// Award is one ranked winner of a period occurrence
type Award struct {
	Rank       int    `json:"rank"` // 1-based
	UserID     UserID `json:"userId"`
	Score      int64  `json:"score"`
	Reputation int64  `json:"reputation"`
	Currency   int64  `json:"currency"`
}

// SettlementPlan freezes the ranking of one period occurrence so that a
// re-run resumes issuing rewards instead of recomputing them
type SettlementPlan struct {
	Key          PeriodKey `json:"key"`
	Period       Period    `json:"period"`
	Participants []UserID  `json:"participants"`
	Awards       []Award   `json:"awards"`
	Completed    bool      `json:"completed"`
	CreatedAt    time.Time `json:"createdAt"`
	CompletedAt  time.Time `json:"completedAt,omitzero"`
}

// AuditStatus classifies the outcome of reconciling one user
type AuditStatus string

const (
	AuditReconciled AuditStatus = "reconciled" // within tolerance
	AuditCorrected  AuditStatus = "corrected"  // divergence corrected and reported
	AuditSkipped    AuditStatus = "skipped"    // error; user left untouched
)

// AuditOutcome is the per-user result of an audit pass
type AuditOutcome struct {
	UserID           UserID
	Status           AuditStatus
	ClaimedBalance   int64
	CorrectedBalance int64
	EntriesConsumed  int
	Err              error
}

// Corrected reports whether the user's balance was overwritten after a divergence
func (o AuditOutcome) Corrected() bool {
	return o.Status == AuditCorrected
}

// PeriodSummary is the result of settling one period occurrence
type PeriodSummary struct {
	Period       Period
	Key          PeriodKey
	Participants int
	Awards       []Award
	Rewarded     int
	Reset        int
	Resumed      bool // an existing plan was reused
	AlreadyDone  bool // the plan was already completed; nothing was written
	Failures     []UserFailure
}

// UserFailure records a per-user error that was logged and skipped
type UserFailure struct {
	UserID UserID
	Err    error
}

// Only the top RewardedRanks participants are rewarded, and only the top
// CurrencyRanks of those receive currency
const (
	RewardedRanks = 5
	CurrencyRanks = 3
)

// RewardTable holds per-rank rewards for one period, indexed by 0-based rank
type RewardTable struct {
	Reputation []int64 `toml:"reputation"`
	Currency   []int64 `toml:"currency"`
}

// ReputationFor returns the reputation reward for a 0-based rank
func (t RewardTable) ReputationFor(rank int) int64 {
	if rank < 0 || rank >= RewardedRanks || rank >= len(t.Reputation) {
		return 0
	}
	return t.Reputation[rank]
}

// CurrencyFor returns the currency reward for a 0-based rank; zero beyond the currency ranks
func (t RewardTable) CurrencyFor(rank int) int64 {
	if rank < 0 || rank >= CurrencyRanks || rank >= len(t.Currency) {
		return 0
	}
	return t.Currency[rank]
}
