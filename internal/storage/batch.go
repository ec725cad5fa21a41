package storage

import (
	"fmt"

	"github.com/mcoot/arcade-judge/internal/model"
)

// OpKind identifies the kind of write in a batch
type OpKind int

const (
	OpSetBalances OpKind = iota
	OpIncrement
	OpResetScore
	OpAppendLedger
	OpDeleteLedger
	OpAppendNotification
	OpDeleteNotification
	OpAppendAuditReport
	OpMarkRewarded
)

// Op is a single write staged in a batch
type Op struct {
	Kind   OpKind
	UserID model.UserID

	// OpSetBalances
	Balance        int64
	AuditedBalance int64

	// OpIncrement
	ReputationDelta int64
	BalanceDelta    int64

	// OpResetScore
	Period model.Period

	Entry          *model.LedgerEntry
	EntryID        model.LedgerEntryID
	Notification   *model.Notification
	NotificationID model.NotificationID
	Report         *model.AuditReport

	// OpMarkRewarded
	Key model.PeriodKey
}

// TouchesUserDoc reports whether the op writes fields of the user document itself
func (o Op) TouchesUserDoc() bool {
	switch o.Kind {
	case OpSetBalances, OpIncrement, OpResetScore:
		return true
	}
	return false
}

// Batch collects writes that a Storage commits atomically.
// Guarded users must still be in the state they were read in when the batch
// commits, otherwise the commit fails with model.ErrVersionConflict.
type Batch struct {
	ops    []Op
	guards map[model.UserID]UserGuard
}

// UserGuard is the user state a guarded batch expects at commit time.
// Gameplay writers only touch the balance and never bump Version, so both are checked.
type UserGuard struct {
	Version int64
	Balance int64
}

// Matches reports whether the user is still in the guarded state
func (g UserGuard) Matches(version, balance int64) bool {
	return g.Version == version && g.Balance == balance
}

// NewBatch creates an empty batch
func NewBatch() *Batch {
	return &Batch{guards: make(map[model.UserID]UserGuard)}
}

// Guard requires the user to still be at the version and balance that were read
func (b *Batch) Guard(user *model.User) {
	b.guards[user.ID] = UserGuard{Version: user.Version, Balance: user.Balance}
}

// SetBalances overwrites a user's live and audited balances
func (b *Batch) SetBalances(id model.UserID, balance, audited int64) {
	b.ops = append(b.ops, Op{Kind: OpSetBalances, UserID: id, Balance: balance, AuditedBalance: audited})
}

// Increment adds to a user's reputation points and live balance
func (b *Batch) Increment(id model.UserID, reputation, balance int64) {
	b.ops = append(b.ops, Op{Kind: OpIncrement, UserID: id, ReputationDelta: reputation, BalanceDelta: balance})
}

// ResetScore zeroes a user's score for the period
func (b *Batch) ResetScore(id model.UserID, period model.Period) {
	b.ops = append(b.ops, Op{Kind: OpResetScore, UserID: id, Period: period})
}

// AppendLedger adds an entry to a user's ledger
func (b *Batch) AppendLedger(id model.UserID, entry model.LedgerEntry) {
	b.ops = append(b.ops, Op{Kind: OpAppendLedger, UserID: id, Entry: &entry})
}

// DeleteLedger removes an entry from a user's ledger
func (b *Batch) DeleteLedger(id model.UserID, entryID model.LedgerEntryID) {
	b.ops = append(b.ops, Op{Kind: OpDeleteLedger, UserID: id, EntryID: entryID})
}

// AppendNotification adds a message to a user's outbox
func (b *Batch) AppendNotification(id model.UserID, n model.Notification) {
	b.ops = append(b.ops, Op{Kind: OpAppendNotification, UserID: id, Notification: &n})
}

// DeleteNotification removes a message from a user's outbox
func (b *Batch) DeleteNotification(id model.UserID, nid model.NotificationID) {
	b.ops = append(b.ops, Op{Kind: OpDeleteNotification, UserID: id, NotificationID: nid})
}

// AppendAuditReport adds a report to the global audit log
func (b *Batch) AppendAuditReport(r model.AuditReport) {
	b.ops = append(b.ops, Op{Kind: OpAppendAuditReport, UserID: r.UserID, Report: &r})
}

// MarkRewarded records that a user has received their award for a period occurrence
func (b *Batch) MarkRewarded(key model.PeriodKey, id model.UserID) {
	b.ops = append(b.ops, Op{Kind: OpMarkRewarded, UserID: id, Key: key})
}

// Ops returns the staged operations in order
func (b *Batch) Ops() []Op {
	return b.ops
}

// Guards returns the version guards keyed by user
func (b *Batch) Guards() map[model.UserID]UserGuard {
	return b.guards
}

// Len returns the number of staged writes
func (b *Batch) Len() int {
	return len(b.ops)
}

// TouchedUsers returns, in first-touch order, every user whose document the batch writes
func (b *Batch) TouchedUsers() []model.UserID {
	seen := make(map[model.UserID]bool)
	var ids []model.UserID
	for _, op := range b.ops {
		if op.TouchesUserDoc() && !seen[op.UserID] {
			seen[op.UserID] = true
			ids = append(ids, op.UserID)
		}
	}
	return ids
}

// Validate checks the batch can be committed
func (b *Batch) Validate() error {
	if len(b.ops) == 0 {
		return model.ErrEmptyBatch
	}
	if len(b.ops) > MaxBatchWrites {
		return fmt.Errorf("%w: %d > %d", model.ErrBatchTooLarge, len(b.ops), MaxBatchWrites)
	}
	return nil
}
