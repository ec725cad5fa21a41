package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping verifies the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	fields := map[string]any{
		fieldDisplayName:      user.DisplayName,
		fieldScoreDaily:       user.ScoreDaily,
		fieldScoreWeekly:      user.ScoreWeekly,
		fieldScoreMonthly:     user.ScoreMonthly,
		fieldReputationPoints: user.ReputationPoints,
		fieldBalance:          user.Balance,
	}
	if user.AuditedBalance != nil {
		fields[fieldAuditedBalance] = *user.AuditedBalance
	}

	key := userKey(user.ID)
	var version *redis.IntCmd

	// Use a transaction for atomic save + version bump + index update
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if user.AuditedBalance == nil {
			pipe.HDel(ctx, key, fieldAuditedBalance)
		}
		version = pipe.HIncrBy(ctx, key, fieldVersion, 1)
		pipe.SAdd(ctx, usersIndexKey(), string(user.ID))
		return nil
	})
	if err != nil {
		return err
	}

	user.Version = version.Val()
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	values, err := s.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, model.ErrUserNotFound
	}
	return parseUser(id, values)
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	ids, err := s.client.SMembers(ctx, usersIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	sort.Strings(ids)

	// Fetch all user hashes in one round trip
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, userKey(model.UserID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(ids))
	for i, cmd := range cmds {
		values := cmd.Val()
		if len(values) == 0 {
			continue // Index entry without a document
		}
		user, err := parseUser(model.UserID(ids[i]), values)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// parseUser builds a User from its hash fields; missing counters read as zero
func parseUser(id model.UserID, values map[string]string) (*model.User, error) {
	user := &model.User{ID: id, DisplayName: values[fieldDisplayName]}

	ints := []struct {
		field string
		dst   *int64
	}{
		{fieldScoreDaily, &user.ScoreDaily},
		{fieldScoreWeekly, &user.ScoreWeekly},
		{fieldScoreMonthly, &user.ScoreMonthly},
		{fieldReputationPoints, &user.ReputationPoints},
		{fieldBalance, &user.Balance},
		{fieldVersion, &user.Version},
	}
	for _, f := range ints {
		raw, ok := values[f.field]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	if raw, ok := values[fieldAuditedBalance]; ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		user.AuditedBalance = &v
	}
	return user, nil
}

// Ledger operations

func (s *Storage) GetLedger(ctx context.Context, id model.UserID) ([]model.LedgerEntry, error) {
	if err := s.requireUser(ctx, id); err != nil {
		return nil, err
	}
	values, err := s.client.HGetAll(ctx, ledgerKey(id)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]model.LedgerEntry, 0, len(values))
	for _, raw := range values {
		var entry model.LedgerEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	storage.SortLedger(entries)
	return entries, nil
}

// Notification operations

func (s *Storage) GetNotifications(ctx context.Context, id model.UserID) ([]model.Notification, error) {
	if err := s.requireUser(ctx, id); err != nil {
		return nil, err
	}
	values, err := s.client.HGetAll(ctx, notificationsKey(id)).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]model.Notification, 0, len(values))
	for _, raw := range values {
		var n model.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, err
		}
		msgs = append(msgs, n)
	}
	storage.SortNotifications(msgs)
	return msgs, nil
}

// SetNotificationRead marks a message read at the given time, as the game client does
func (s *Storage) SetNotificationRead(ctx context.Context, id model.UserID, nid model.NotificationID, readAt time.Time) error {
	raw, err := s.client.HGet(ctx, notificationsKey(id), string(nid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.ErrNotificationNotFound
		}
		return err
	}

	var n model.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	n.Read = true
	n.ReadAt = readAt

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, notificationsKey(id), string(nid), data).Err()
}

func (s *Storage) requireUser(ctx context.Context, id model.UserID) error {
	exists, err := s.client.Exists(ctx, userKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// Audit report operations

func (s *Storage) ListAuditReports(ctx context.Context, limit int) ([]model.AuditReport, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	// Newest first
	ids, err := s.client.ZRevRange(ctx, auditReportsIndexKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.AuditReport{}, nil
	}

	values, err := s.client.HMGet(ctx, auditReportsKey(), ids...).Result()
	if err != nil {
		return nil, err
	}

	reports := make([]model.AuditReport, 0, len(values))
	for _, val := range values {
		raw, ok := val.(string)
		if !ok {
			continue
		}
		var report model.AuditReport
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Settlement plan operations

func (s *Storage) GetSettlementPlan(ctx context.Context, key model.PeriodKey) (*model.SettlementPlan, error) {
	data, err := s.client.Get(ctx, settlementKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlanNotFound
		}
		return nil, err
	}

	var plan model.SettlementPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Storage) SaveSettlementPlan(ctx context.Context, plan *model.SettlementPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, settlementKey(plan.Key), data, s.cfg.SettlementTTL).Err()
}

func (s *Storage) GetRewardedUsers(ctx context.Context, key model.PeriodKey) (map[model.UserID]bool, error) {
	members, err := s.client.SMembers(ctx, rewardedKey(key)).Result()
	if err != nil {
		return nil, err
	}
	result := make(map[model.UserID]bool, len(members))
	for _, m := range members {
		result[model.UserID(m)] = true
	}
	return result, nil
}

// Batch operations

// Commit applies the batch in a MULTI/EXEC transaction while watching every
// user document it touches, so a concurrent write aborts the whole batch
func (s *Storage) Commit(ctx context.Context, batch *storage.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	users := batchUsers(batch)
	keys := make([]string, len(users))
	for i, id := range users {
		keys[i] = userKey(id)
	}
	guards := batch.Guards()

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		for _, id := range users {
			// A hash with no version field was written outside the judge and counts as version 0
			values, err := tx.HGetAll(ctx, userKey(id)).Result()
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return model.ErrUserNotFound
			}
			want, ok := guards[id]
			if !ok {
				continue
			}
			current, err := parseUser(id, values)
			if err != nil {
				return err
			}
			if !want.Matches(current.Version, current.Balance) {
				return model.ErrVersionConflict
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range batch.Ops() {
				if err := s.stage(ctx, pipe, op); err != nil {
					return err
				}
			}
			for _, id := range batch.TouchedUsers() {
				pipe.HIncrBy(ctx, userKey(id), fieldVersion, 1)
			}
			return nil
		})
		return err
	}, keys...)

	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrVersionConflict
	}
	return err
}

// batchUsers returns every user a batch must find present, sorted for stable WATCH order
func batchUsers(batch *storage.Batch) []model.UserID {
	seen := make(map[model.UserID]bool)
	for id := range batch.Guards() {
		seen[id] = true
	}
	for _, op := range batch.Ops() {
		if op.Kind == storage.OpAppendAuditReport || op.Kind == storage.OpMarkRewarded {
			continue
		}
		seen[op.UserID] = true
	}

	ids := make([]model.UserID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Storage) stage(ctx context.Context, pipe redis.Pipeliner, op storage.Op) error {
	switch op.Kind {
	case storage.OpSetBalances:
		pipe.HSet(ctx, userKey(op.UserID), fieldBalance, op.Balance, fieldAuditedBalance, op.AuditedBalance)
	case storage.OpIncrement:
		if op.ReputationDelta != 0 {
			pipe.HIncrBy(ctx, userKey(op.UserID), fieldReputationPoints, op.ReputationDelta)
		}
		if op.BalanceDelta != 0 {
			pipe.HIncrBy(ctx, userKey(op.UserID), fieldBalance, op.BalanceDelta)
		}
	case storage.OpResetScore:
		pipe.HSet(ctx, userKey(op.UserID), op.Period.ScoreField(), 0)
	case storage.OpAppendLedger:
		data, err := json.Marshal(op.Entry)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, ledgerKey(op.UserID), string(op.Entry.ID), data)
	case storage.OpDeleteLedger:
		pipe.HDel(ctx, ledgerKey(op.UserID), string(op.EntryID))
	case storage.OpAppendNotification:
		data, err := json.Marshal(op.Notification)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, notificationsKey(op.UserID), string(op.Notification.ID), data)
	case storage.OpDeleteNotification:
		pipe.HDel(ctx, notificationsKey(op.UserID), string(op.NotificationID))
	case storage.OpAppendAuditReport:
		data, err := json.Marshal(op.Report)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, auditReportsKey(), string(op.Report.ID), data)
		pipe.ZAdd(ctx, auditReportsIndexKey(), redis.Z{
			Score:  float64(op.Report.CreatedAt.UnixMilli()),
			Member: string(op.Report.ID),
		})
	case storage.OpMarkRewarded:
		pipe.SAdd(ctx, rewardedKey(op.Key), string(op.UserID))
		if s.cfg.SettlementTTL > 0 {
			pipe.Expire(ctx, rewardedKey(op.Key), s.cfg.SettlementTTL)
		}
	}
	return nil
}
