package model

// UserID uniquely identifies a user document
type UserID string

// DefaultSeedGrant is the audited balance assumed for a user that has never been audited
const DefaultSeedGrant int64 = 5

// User is a player's account record as held by the document store
type User struct {
	ID          UserID
	DisplayName string

	// Period scores, zeroed once their period settles
	ScoreDaily   int64
	ScoreWeekly  int64
	ScoreMonthly int64

	// ReputationPoints only ever increases and has no ledger
	ReputationPoints int64

	// Balance is the live currency balance; gameplay code writes it directly
	Balance int64
	// AuditedBalance is nil until the first reconciliation
	AuditedBalance *int64

	// Version is bumped on every write and guards read-modify-write batches
	Version int64
}

// Score returns the user's score for the given period
func (u *User) Score(p Period) int64 {
	switch p {
	case PeriodDaily:
		return u.ScoreDaily
	case PeriodWeekly:
		return u.ScoreWeekly
	case PeriodMonthly:
		return u.ScoreMonthly
	}
	return 0
}

// SetScore overwrites the user's score for the given period
func (u *User) SetScore(p Period, score int64) {
	switch p {
	case PeriodDaily:
		u.ScoreDaily = score
	case PeriodWeekly:
		u.ScoreWeekly = score
	case PeriodMonthly:
		u.ScoreMonthly = score
	}
}

// AuditedOrSeed returns the last audited balance, or seed if the user was never audited
func (u *User) AuditedOrSeed(seed int64) int64 {
	if u.AuditedBalance == nil {
		return seed
	}
	return *u.AuditedBalance
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	c := *u
	if u.AuditedBalance != nil {
		v := *u.AuditedBalance
		c.AuditedBalance = &v
	}
	return &c
}
