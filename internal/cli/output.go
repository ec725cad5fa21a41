package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/services/notify"
	"github.com/mcoot/arcade-judge/internal/services/settlement"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case settlement.ReportView:
		o.printReport(v)
	case DueResult:
		o.printDue(v)
	case []model.AuditReport:
		o.printAuditReports(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printReport(r settlement.ReportView) {
	fmt.Fprintf(o.w, "Settlement for %s (%s)\n", r.LocalDate, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(o.w, "Users: %d\n", r.Users)
	fmt.Fprintf(o.w, "Audit: %d reconciled, %d corrected, %d skipped\n",
		r.Audit.Reconciled, r.Audit.Corrected, r.Audit.Skipped)
	for _, c := range r.Corrected {
		fmt.Fprintf(o.w, "  %s: %d -> %d\n", c.UserID, c.Claimed, c.Computed)
	}

	if len(r.Periods) == 0 {
		fmt.Fprintln(o.w, "Periods: none settled")
	}
	for _, p := range r.Periods {
		status := ""
		switch {
		case p.Error != "":
			status = " [error: " + p.Error + "]"
		case p.AlreadyDone:
			status = " [already settled]"
		case p.Resumed:
			status = " [resumed]"
		}
		fmt.Fprintf(o.w, "%s: %d participants, %d rewarded, %d reset%s\n",
			p.Key, p.Participants, p.Rewarded, p.Reset, status)
		for _, a := range p.Awards {
			fmt.Fprintf(o.w, "  %-4s %-24s score %-6d +%d rep +%d tokens\n",
				notify.Ordinal(a.Rank), a.UserID, a.Score, a.Reputation, a.Currency)
		}
	}

	fmt.Fprintf(o.w, "Notifications pruned: %d\n", r.Pruned)
	if len(r.Failures) > 0 {
		fmt.Fprintf(o.w, "Failures (%d):\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(o.w, "  %s: %s\n", f.UserID, f.Error)
		}
	}
}

func (o *Output) printDue(d DueResult) {
	keys := make([]string, len(d.Keys))
	for i, k := range d.Keys {
		keys[i] = string(k)
	}
	fmt.Fprintf(o.w, "Local date: %s\n", d.LocalDate)
	fmt.Fprintf(o.w, "Due: %s\n", strings.Join(keys, ", "))
}

func (o *Output) printAuditReports(reports []model.AuditReport) {
	if len(reports) == 0 {
		fmt.Fprintln(o.w, "No audit reports.")
		return
	}
	fmt.Fprintf(o.w, "%-20s  %-24s  %10s  %10s  %s\n", "CREATED", "USER", "CLAIMED", "COMPUTED", "REASON")
	for _, r := range reports {
		fmt.Fprintf(o.w, "%-20s  %-24s  %10d  %10d  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.UserID, r.ClaimedBalance, r.ComputedBalance, r.Reason)
	}
}
