package admin

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/arcade-judge/internal/dependencies/clock"
	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/middleware"
	"github.com/mcoot/arcade-judge/internal/scheduler"
	"github.com/mcoot/arcade-judge/internal/services/settlement"
	"github.com/mcoot/arcade-judge/internal/storage"
)

// RouterConfig holds the dependencies of the admin router
type RouterConfig struct {
	Logger       *slog.Logger
	Storage      storage.Storage
	Metrics      *metrics.Metrics
	Runner       *scheduler.Runner
	Orchestrator *settlement.Orchestrator
	Clock        clock.Clock
}

// NewRouter creates the admin router
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	h := &handler{
		storage:      cfg.Storage,
		runner:       cfg.Runner,
		orchestrator: cfg.Orchestrator,
		clock:        cfg.Clock,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger, panicHandler))

	// Probes and scrapes are not access-logged
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Logging(cfg.Logger))
	api.HandleFunc("/runs", h.triggerRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/last", h.lastRun).Methods(http.MethodGet)
	api.HandleFunc("/due", h.due).Methods(http.MethodGet)
	api.HandleFunc("/reports", h.reports).Methods(http.MethodGet)
	api.HandleFunc("/plans/{key}", h.plan).Methods(http.MethodGet)

	return r
}
