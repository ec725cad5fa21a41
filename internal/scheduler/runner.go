package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/arcade-judge/internal/metrics"
	"github.com/mcoot/arcade-judge/internal/services/settlement"
)

// ErrRunInProgress is returned when a run is requested while another is active
var ErrRunInProgress = errors.New("settlement run already in progress")

// Runner serializes settlement runs within one process and publishes metrics after each
type Runner struct {
	orchestrator *settlement.Orchestrator
	metrics      *metrics.Metrics
	textfile     string
	logger       *slog.Logger

	running sync.Mutex

	mu   sync.RWMutex
	last *settlement.Report
}

// NewRunner creates a Runner. If textfile is non-empty, metrics are written
// there in the node_exporter textfile format after every run.
func NewRunner(orchestrator *settlement.Orchestrator, metrics *metrics.Metrics, textfile string, logger *slog.Logger) *Runner {
	return &Runner{
		orchestrator: orchestrator,
		metrics:      metrics,
		textfile:     textfile,
		logger:       logger,
	}
}

// RunOnce performs one settlement run, or returns ErrRunInProgress without waiting
func (r *Runner) RunOnce(ctx context.Context, opts settlement.RunOptions) (*settlement.Report, error) {
	if !r.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.running.Unlock()

	report, err := r.orchestrator.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()

	if r.textfile != "" {
		if err := r.metrics.WriteTextfile(r.textfile); err != nil {
			// The run itself succeeded
			r.logger.Warn("failed to write metrics textfile",
				slog.String("path", r.textfile),
				slog.String("error", err.Error()),
			)
		}
	}
	return report, nil
}

// Last returns the report of the most recent successful run, or nil
func (r *Runner) Last() *settlement.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}
