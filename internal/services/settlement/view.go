package settlement

import (
	"time"

	"github.com/mcoot/arcade-judge/internal/model"
)

// ReportView is the serializable form of a Report
type ReportView struct {
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	LocalDate  string          `json:"localDate"`
	Users      int             `json:"users"`
	Due        []model.Period  `json:"due"`
	Audit      AuditView       `json:"audit"`
	Periods    []PeriodView    `json:"periods"`
	Pruned     int             `json:"pruned"`
	Failures   []FailureView   `json:"failures,omitempty"`
	Corrected  []CorrectedView `json:"corrected,omitempty"`
}

// AuditView counts audit outcomes by status
type AuditView struct {
	Reconciled int `json:"reconciled"`
	Corrected  int `json:"corrected"`
	Skipped    int `json:"skipped"`
}

// CorrectedView describes one balance that was overwritten
type CorrectedView struct {
	UserID   model.UserID `json:"userId"`
	Claimed  int64        `json:"claimed"`
	Computed int64        `json:"computed"`
}

// PeriodView summarises one settled period
type PeriodView struct {
	Period       model.Period    `json:"period"`
	Key          model.PeriodKey `json:"key"`
	Participants int             `json:"participants"`
	Awards       []model.Award   `json:"awards"`
	Rewarded     int             `json:"rewarded"`
	Reset        int             `json:"reset"`
	Resumed      bool            `json:"resumed"`
	AlreadyDone  bool            `json:"alreadyDone"`
	Error        string          `json:"error,omitempty"`
}

// FailureView is a per-user failure with its error flattened to text
type FailureView struct {
	UserID model.UserID `json:"userId"`
	Error  string       `json:"error"`
}

// View flattens the report for JSON output
func (r *Report) View() ReportView {
	v := ReportView{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		LocalDate:  r.LocalDate,
		Users:      r.Users,
		Due:        r.Due,
		Audit: AuditView{
			Reconciled: r.AuditCount(model.AuditReconciled),
			Corrected:  r.AuditCount(model.AuditCorrected),
			Skipped:    r.AuditCount(model.AuditSkipped),
		},
		Periods: make([]PeriodView, 0, len(r.Periods)),
		Pruned:  r.Pruned,
	}

	for _, o := range r.Audit {
		if o.Corrected() {
			v.Corrected = append(v.Corrected, CorrectedView{
				UserID:   o.UserID,
				Claimed:  o.ClaimedBalance,
				Computed: o.CorrectedBalance,
			})
		}
	}
	for _, p := range r.Periods {
		pv := PeriodView{
			Period:       p.Period,
			Key:          p.Key,
			Participants: p.Participants,
			Awards:       p.Awards,
			Rewarded:     p.Rewarded,
			Reset:        p.Reset,
			Resumed:      p.Resumed,
			AlreadyDone:  p.AlreadyDone,
		}
		if p.Err != nil {
			pv.Error = p.Err.Error()
		}
		v.Periods = append(v.Periods, pv)
	}
	for _, f := range r.Failures {
		v.Failures = append(v.Failures, FailureView{UserID: f.UserID, Error: f.Err.Error()})
	}
	return v
}
