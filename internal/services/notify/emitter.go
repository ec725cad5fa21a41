package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/arcade-judge/internal/dependencies/clock"
	"github.com/mcoot/arcade-judge/internal/dependencies/ids"
	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/storage"
)

// Emitter composes outbox messages and maintains user outboxes
type Emitter struct {
	storage storage.Storage
	clock   clock.Clock
	ids     ids.Generator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new Emitter
func New(storage storage.Storage, clock clock.Clock, ids ids.Generator, metrics *metrics.Metrics, logger *slog.Logger) *Emitter {
	return &Emitter{
		storage: storage,
		clock:   clock,
		ids:     ids,
		metrics: metrics,
		logger:  logger,
	}
}

// Reward composes the message telling a winner their rank and rewards
func (e *Emitter) Reward(period model.Period, award model.Award) model.Notification {
	var currency string
	if award.Currency > 0 {
		currency = fmt.Sprintf(" and <strong>%d Tokens</strong>", award.Currency)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Congratulations! Your score of %d earned you <strong>%s place</strong>.<br><br>",
		award.Score, Ordinal(award.Rank))
	fmt.Fprintf(&body, "You received:<br>⭐ <strong>%d Champion Points</strong>%s.<br><br>",
		award.Reputation, currency)
	body.WriteString("Keep playing to stay on top!")

	return e.message(fmt.Sprintf("🏆 Top %d %s!", award.Rank, period.Title()), body.String())
}

// AuditCorrection composes the message telling a user their balance was reconciled
func (e *Emitter) AuditCorrection(claimed, computed int64) model.Notification {
	return e.message("Balance reconciled",
		fmt.Sprintf("Your balance did not match your transaction history and was corrected from "+
			"<strong>%d</strong> to <strong>%d Tokens</strong>.", claimed, computed))
}

func (e *Emitter) message(title, body string) model.Notification {
	return model.Notification{Title: title, Body: body}
}

// Stage adds a composed message to the user's outbox as part of a larger batch.
// The message is identified and timestamped here, when it joins the batch.
func (e *Emitter) Stage(batch *storage.Batch, userID model.UserID, n model.Notification) model.NotificationID {
	n.ID = model.NotificationID(e.ids.NewID())
	n.CreatedAt = e.clock.Now()
	batch.AppendNotification(userID, n)
	return n.ID
}

// PruneResult summarises an outbox pruning pass
type PruneResult struct {
	Removed  int
	Failures []model.UserFailure
}

// PruneRead deletes read messages whose read time is before the cutoff.
// Errors are per user: they are logged, collected, and the pass continues.
func (e *Emitter) PruneRead(ctx context.Context, users []model.UserID, cutoff time.Time) PruneResult {
	var result PruneResult

	for _, id := range users {
		removed, err := e.pruneUser(ctx, id, cutoff)
		if err != nil {
			e.logger.Error("failed to prune outbox",
				slog.String("user_id", string(id)),
				slog.String("error", err.Error()),
			)
			result.Failures = append(result.Failures, model.UserFailure{UserID: id, Err: err})
			continue
		}
		result.Removed += removed
	}

	e.metrics.NotificationsPruned.Add(float64(result.Removed))
	e.logger.Info("outbox pruning complete",
		slog.Int("removed", result.Removed),
		slog.Int("failures", len(result.Failures)),
		slog.Time("cutoff", cutoff),
	)
	return result
}

func (e *Emitter) pruneUser(ctx context.Context, id model.UserID, cutoff time.Time) (int, error) {
	msgs, err := e.storage.GetNotifications(ctx, id)
	if err != nil {
		return 0, err
	}

	var expired []model.NotificationID
	for _, n := range msgs {
		if n.Expired(cutoff) {
			expired = append(expired, n.ID)
		}
	}

	removed := 0
	for start := 0; start < len(expired); start += storage.MaxBatchWrites {
		end := min(start+storage.MaxBatchWrites, len(expired))
		batch := storage.NewBatch()
		for _, nid := range expired[start:end] {
			batch.DeleteNotification(id, nid)
		}
		if err := e.storage.Commit(ctx, batch); err != nil {
			return removed, err
		}
		removed += end - start
	}
	return removed, nil
}

// Ordinal renders a 1-based rank as "1st", "2nd", ...
func Ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
