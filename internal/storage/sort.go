package storage

import (
	"sort"

	"github.com/mcoot/arcade-judge/internal/model"
)

// SortLedger orders entries by timestamp, then id
func SortLedger(entries []model.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].ID < entries[j].ID
	})
}

// SortNotifications orders messages by creation time, then id
func SortNotifications(msgs []model.Notification) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}
