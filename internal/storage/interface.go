package storage

import (
	"context"

	"github.com/mcoot/arcade-judge/internal/model"
)

// MaxBatchWrites bounds the number of writes committed in one batch
const MaxBatchWrites = 500

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	// Ledger operations
	GetLedger(ctx context.Context, id model.UserID) ([]model.LedgerEntry, error)

	// Notification operations
	GetNotifications(ctx context.Context, id model.UserID) ([]model.Notification, error)

	// Audit report operations
	ListAuditReports(ctx context.Context, limit int) ([]model.AuditReport, error)

	// Settlement plan operations
	GetSettlementPlan(ctx context.Context, key model.PeriodKey) (*model.SettlementPlan, error)
	SaveSettlementPlan(ctx context.Context, plan *model.SettlementPlan) error
	GetRewardedUsers(ctx context.Context, key model.PeriodKey) (map[model.UserID]bool, error)

	// Commit applies every operation in the batch atomically, or none of them
	Commit(ctx context.Context, batch *Batch) error

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
	Close() error
}
