package audit

import "github.com/mcoot/arcade-judge/internal/model"

// Decision is the pure result of folding a user's ledger into their audited balance
type Decision struct {
	// Audited is the audited balance before this fold (seeded if never audited)
	Audited int64
	// Expected is Audited plus every pending entry; the balance is rewritten to it
	Expected int64
	// NewAudited is Audited plus the consumed entries only
	NewAudited int64
	// Consumed are the entries folded and deleted in this pass, oldest first
	Consumed []model.LedgerEntry
	// Divergence is the live balance minus Expected
	Divergence int64
	// Diverged is true when |Divergence| exceeds the tolerance
	Diverged bool
}

// Decide computes the reconciliation for one user. At most maxConsume entries
// are consumed so the batch stays within store limits; any remainder stays in
// the ledger, and balance == NewAudited + Σ(remaining) still holds afterwards.
func Decide(user *model.User, entries []model.LedgerEntry, tolerance, seed int64, maxConsume int) Decision {
	audited := user.AuditedOrSeed(seed)
	expected := model.FoldLedger(audited, entries)

	consumed := entries
	if maxConsume >= 0 && len(consumed) > maxConsume {
		consumed = consumed[:maxConsume]
	}

	divergence := user.Balance - expected
	return Decision{
		Audited:    audited,
		Expected:   expected,
		NewAudited: model.FoldLedger(audited, consumed),
		Consumed:   consumed,
		Divergence: divergence,
		Diverged:   abs(divergence) > tolerance,
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
