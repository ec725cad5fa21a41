package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/arcade-judge/internal/dependencies/clock"
	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/scheduler"
	"github.com/mcoot/arcade-judge/internal/services/settlement"
	"github.com/mcoot/arcade-judge/internal/storage"
)

const (
	defaultReportLimit = 50
	maxReportLimit     = 1000
)

type handler struct {
	storage      storage.Storage
	runner       *scheduler.Runner
	orchestrator *settlement.Orchestrator
	clock        clock.Clock
}

// DueResponse lists the periods that settle at an instant
type DueResponse struct {
	Now     time.Time      `json:"now"`
	Periods []model.Period `json:"periods"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		writeError(w, unavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	opts := settlement.RunOptions{}
	if v := r.URL.Query().Get("audit_only"); v != "" {
		auditOnly, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, invalidRequest("audit_only must be a boolean"))
			return
		}
		opts.AuditOnly = auditOnly
	}

	// A dropped connection must not abort a run half way
	report, err := h.runner.RunOnce(context.WithoutCancel(r.Context()), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report.View())
}

func (h *handler) lastRun(w http.ResponseWriter, _ *http.Request) {
	report := h.runner.Last()
	if report == nil {
		writeError(w, notFound("no run has completed yet"))
		return
	}
	writeJSON(w, http.StatusOK, report.View())
}

func (h *handler) due(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	if v := r.URL.Query().Get("now"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, invalidRequest("now must be an RFC 3339 timestamp"))
			return
		}
		now = t
	}
	writeJSON(w, http.StatusOK, DueResponse{Now: now.UTC(), Periods: h.orchestrator.Due(now)})
}

func (h *handler) reports(w http.ResponseWriter, r *http.Request) {
	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxReportLimit {
			writeError(w, invalidRequest("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	reports, err := h.storage.ListAuditReports(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if reports == nil {
		reports = []model.AuditReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *handler) plan(w http.ResponseWriter, r *http.Request) {
	key := model.PeriodKey(mux.Vars(r)["key"])
	prefix, _, _ := strings.Cut(string(key), ":")
	if _, err := model.ParsePeriod(prefix); err != nil {
		writeError(w, err)
		return
	}

	plan, err := h.storage.GetSettlementPlan(r.Context(), key)
	if errors.Is(err, model.ErrPlanNotFound) {
		writeError(w, notFound("no settlement plan for "+string(key)))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
