package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users         map[model.UserID]*model.User
	ledgers       map[model.UserID]map[model.LedgerEntryID]model.LedgerEntry
	notifications map[model.UserID]map[model.NotificationID]model.Notification
	auditReports  []model.AuditReport
	plans         map[model.PeriodKey]*model.SettlementPlan
	rewarded      map[model.PeriodKey]map[model.UserID]bool

	// FailCommit, if set, is consulted before each commit and its error returned
	FailCommit func(batch *storage.Batch) error
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:         make(map[model.UserID]*model.User),
		ledgers:       make(map[model.UserID]map[model.LedgerEntryID]model.LedgerEntry),
		notifications: make(map[model.UserID]map[model.NotificationID]model.Notification),
		plans:         make(map[model.PeriodKey]*model.SettlementPlan),
		rewarded:      make(map[model.PeriodKey]map[model.UserID]bool),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := user.Clone()
	if prev, ok := s.users[user.ID]; ok {
		stored.Version = prev.Version + 1
	} else {
		stored.Version = 1
	}
	s.users[user.ID] = stored
	user.Version = stored.Version
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.Clone())
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// Ledger operations

func (s *Storage) GetLedger(ctx context.Context, id model.UserID) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[id]; !ok {
		return nil, model.ErrUserNotFound
	}
	entries := make([]model.LedgerEntry, 0, len(s.ledgers[id]))
	for _, e := range s.ledgers[id] {
		entries = append(entries, e)
	}
	storage.SortLedger(entries)
	return entries, nil
}

// Notification operations

func (s *Storage) GetNotifications(ctx context.Context, id model.UserID) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[id]; !ok {
		return nil, model.ErrUserNotFound
	}
	msgs := make([]model.Notification, 0, len(s.notifications[id]))
	for _, n := range s.notifications[id] {
		msgs = append(msgs, n)
	}
	storage.SortNotifications(msgs)
	return msgs, nil
}

// Audit report operations

func (s *Storage) ListAuditReports(ctx context.Context, limit int) ([]model.AuditReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reports := make([]model.AuditReport, 0, len(s.auditReports))
	for i := len(s.auditReports) - 1; i >= 0; i-- {
		if limit > 0 && len(reports) == limit {
			break
		}
		reports = append(reports, s.auditReports[i])
	}
	return reports, nil
}

// Settlement plan operations

func (s *Storage) GetSettlementPlan(ctx context.Context, key model.PeriodKey) (*model.SettlementPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[key]
	if !ok {
		return nil, model.ErrPlanNotFound
	}
	c := *plan
	c.Participants = append([]model.UserID(nil), plan.Participants...)
	c.Awards = append([]model.Award(nil), plan.Awards...)
	return &c, nil
}

func (s *Storage) SaveSettlementPlan(ctx context.Context, plan *model.SettlementPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *plan
	c.Participants = append([]model.UserID(nil), plan.Participants...)
	c.Awards = append([]model.Award(nil), plan.Awards...)
	s.plans[plan.Key] = &c
	return nil
}

func (s *Storage) GetRewardedUsers(ctx context.Context, key model.PeriodKey) (map[model.UserID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[model.UserID]bool, len(s.rewarded[key]))
	for id := range s.rewarded[key] {
		result[id] = true
	}
	return result, nil
}

// Batch operations

func (s *Storage) Commit(ctx context.Context, batch *storage.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	if s.FailCommit != nil {
		if err := s.FailCommit(batch); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, guard := range batch.Guards() {
		user, ok := s.users[id]
		if !ok {
			return model.ErrUserNotFound
		}
		if !guard.Matches(user.Version, user.Balance) {
			return model.ErrVersionConflict
		}
	}

	staged := make(map[model.UserID]*model.User)
	stage := func(id model.UserID) (*model.User, error) {
		if u, ok := staged[id]; ok {
			return u, nil
		}
		user, ok := s.users[id]
		if !ok {
			return nil, model.ErrUserNotFound
		}
		u := user.Clone()
		staged[id] = u
		return u, nil
	}

	// Validate every op before mutating anything
	for _, op := range batch.Ops() {
		if op.Kind == storage.OpAppendAuditReport || op.Kind == storage.OpMarkRewarded {
			continue
		}
		if _, err := stage(op.UserID); err != nil {
			return err
		}
	}

	for _, op := range batch.Ops() {
		switch op.Kind {
		case storage.OpSetBalances:
			u := staged[op.UserID]
			audited := op.AuditedBalance
			u.Balance = op.Balance
			u.AuditedBalance = &audited
		case storage.OpIncrement:
			u := staged[op.UserID]
			u.ReputationPoints += op.ReputationDelta
			u.Balance += op.BalanceDelta
		case storage.OpResetScore:
			staged[op.UserID].SetScore(op.Period, 0)
		case storage.OpAppendLedger:
			if s.ledgers[op.UserID] == nil {
				s.ledgers[op.UserID] = make(map[model.LedgerEntryID]model.LedgerEntry)
			}
			s.ledgers[op.UserID][op.Entry.ID] = *op.Entry
		case storage.OpDeleteLedger:
			delete(s.ledgers[op.UserID], op.EntryID)
		case storage.OpAppendNotification:
			if s.notifications[op.UserID] == nil {
				s.notifications[op.UserID] = make(map[model.NotificationID]model.Notification)
			}
			s.notifications[op.UserID][op.Notification.ID] = *op.Notification
		case storage.OpDeleteNotification:
			delete(s.notifications[op.UserID], op.NotificationID)
		case storage.OpAppendAuditReport:
			s.auditReports = append(s.auditReports, *op.Report)
		case storage.OpMarkRewarded:
			if s.rewarded[op.Key] == nil {
				s.rewarded[op.Key] = make(map[model.UserID]bool)
			}
			s.rewarded[op.Key][op.UserID] = true
		}
	}

	for _, id := range batch.TouchedUsers() {
		u := staged[id]
		u.Version++
		s.users[id] = u
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}

// SetNotificationRead marks a message read at the given time, as the game client does
func (s *Storage) SetNotificationRead(ctx context.Context, id model.UserID, nid model.NotificationID, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id][nid]
	if !ok {
		return model.ErrNotificationNotFound
	}
	n.Read = true
	n.ReadAt = readAt
	s.notifications[id][nid] = n
	return nil
}
