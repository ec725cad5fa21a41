package redis

import (
	"fmt"

	"github.com/mcoot/arcade-judge/internal/model"
)

// Key prefix for all judge data
const keyPrefix = "judge"

// Hash fields of a user document
const (
	fieldDisplayName      = "displayName"
	fieldScoreDaily       = "scoreDaily"
	fieldScoreWeekly      = "scoreWeekly"
	fieldScoreMonthly     = "scoreMonthly"
	fieldReputationPoints = "reputationPoints"
	fieldBalance          = "balance"
	fieldAuditedBalance   = "auditedBalance"
	fieldVersion          = "version"
)

// userKey returns the Redis key for a user document (HASH)
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:users:%s", keyPrefix, id)
}

// usersIndexKey returns the Redis key for the SET of all user ids
func usersIndexKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}

// ledgerKey returns the Redis key for a user's ledger (HASH entryId -> JSON)
func ledgerKey(id model.UserID) string {
	return fmt.Sprintf("%s:users:%s:ledger", keyPrefix, id)
}

// notificationsKey returns the Redis key for a user's outbox (HASH msgId -> JSON)
func notificationsKey(id model.UserID) string {
	return fmt.Sprintf("%s:users:%s:notifications", keyPrefix, id)
}

// auditReportsKey returns the Redis key for the global audit log (HASH reportId -> JSON)
func auditReportsKey() string {
	return fmt.Sprintf("%s:audit_reports", keyPrefix)
}

// auditReportsIndexKey returns the Redis key for the ZSET of report ids by creation time
func auditReportsIndexKey() string {
	return fmt.Sprintf("%s:idx:audit_reports", keyPrefix)
}

// settlementKey returns the Redis key for a settlement plan (JSON string)
func settlementKey(key model.PeriodKey) string {
	return fmt.Sprintf("%s:settlements:%s", keyPrefix, key)
}

// rewardedKey returns the Redis key for the SET of users already rewarded for a period occurrence
func rewardedKey(key model.PeriodKey) string {
	return fmt.Sprintf("%s:settlements:%s:rewarded", keyPrefix, key)
}
