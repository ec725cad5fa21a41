package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "judge"

// Metrics holds the settlement job's collectors on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	UsersAudited     prometheus.Counter
	AuditCorrections prometheus.Counter
	AuditFailures    prometheus.Counter
	LedgerConsumed   prometheus.Counter

	RewardsIssued     *prometheus.CounterVec
	ReputationAwarded *prometheus.CounterVec
	CurrencyAwarded   *prometheus.CounterVec
	RewardFailures    *prometheus.CounterVec
	ScoresReset       *prometheus.CounterVec

	NotificationsPruned prometheus.Counter

	LastRunTimestamp prometheus.Gauge
	LastRunDuration  prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		UsersAudited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "audit", Name: "users_total",
			Help: "Users reconciled against their ledger.",
		}),
		AuditCorrections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "audit", Name: "corrections_total",
			Help: "Balances overwritten after diverging beyond the tolerance band.",
		}),
		AuditFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "audit", Name: "failures_total",
			Help: "Users skipped after an audit error.",
		}),
		LedgerConsumed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "audit", Name: "ledger_entries_consumed_total",
			Help: "Ledger entries folded into audited balances and deleted.",
		}),

		RewardsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ranking", Name: "rewards_total",
			Help: "Ranked rewards issued.",
		}, []string{"period"}),
		ReputationAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ranking", Name: "reputation_awarded_total",
			Help: "Reputation points awarded.",
		}, []string{"period"}),
		CurrencyAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ranking", Name: "currency_awarded_total",
			Help: "Currency units awarded through the ledger.",
		}, []string{"period"}),
		RewardFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ranking", Name: "failures_total",
			Help: "Per-user reward or reset failures.",
		}, []string{"period"}),
		ScoresReset: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ranking", Name: "scores_reset_total",
			Help: "Participant period scores reset to zero.",
		}, []string{"period"}),

		NotificationsPruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox", Name: "pruned_total",
			Help: "Read notifications removed after the retention window.",
		}),

		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_timestamp_seconds",
			Help: "Unix time the last settlement run finished.",
		}),
		LastRunDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_duration_seconds",
			Help: "Wall time of the last settlement run.",
		}),
	}
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
