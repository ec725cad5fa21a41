package model

import "time"

// LedgerEntryID identifies a ledger entry within a user's ledger
type LedgerEntryID string

// LedgerEntry is an append-only signed currency delta
type LedgerEntry struct {
	ID        LedgerEntryID `json:"id"`
	Amount    int64         `json:"amount"`
	Reason    string        `json:"reason"`
	Timestamp time.Time     `json:"timestamp"`
}

// FoldLedger applies pending entries to an audited balance and returns the expected balance
func FoldLedger(audited int64, entries []LedgerEntry) int64 {
	total := audited
	for _, e := range entries {
		total += e.Amount
	}
	return total
}

// EntryIDs returns the ids of the given entries in order
func EntryIDs(entries []LedgerEntry) []LedgerEntryID {
	ids := make([]LedgerEntryID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
