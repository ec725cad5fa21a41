package settlement

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/arcade-judge/internal/model"
)

func TestReportView(t *testing.T) {
	start := time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC)
	report := &Report{
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		LocalDate:  "2026-10-16",
		Users:      3,
		Due:        []model.Period{model.PeriodDaily, model.PeriodWeekly},
		Audit: []model.AuditOutcome{
			{UserID: "a", Status: model.AuditCorrected, ClaimedBalance: 50, CorrectedBalance: 10},
			{UserID: "b", Status: model.AuditReconciled},
			{UserID: "c", Status: model.AuditSkipped, Err: errors.New("timeout")},
		},
		Periods: []PeriodResult{
			{PeriodSummary: model.PeriodSummary{Period: model.PeriodDaily, Key: "daily:2026-10-16", Participants: 2, Rewarded: 2}},
			{PeriodSummary: model.PeriodSummary{Period: model.PeriodWeekly, Key: "weekly:2026-10-16"}, Err: errors.New("load plan")},
		},
		Failures: []model.UserFailure{{UserID: "c", Err: errors.New("timeout")}},
	}

	v := report.View()
	assert.Equal(t, AuditView{Reconciled: 1, Corrected: 1, Skipped: 1}, v.Audit)
	assert.Equal(t, []CorrectedView{{UserID: "a", Claimed: 50, Computed: 10}}, v.Corrected)
	require.Len(t, v.Periods, 2)
	assert.Empty(t, v.Periods[0].Error)
	assert.Equal(t, "load plan", v.Periods[1].Error)
	assert.Equal(t, []FailureView{{UserID: "c", Error: "timeout"}}, v.Failures)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"localDate":"2026-10-16"`)
	assert.Contains(t, string(data), `"key":"weekly:2026-10-16"`)
}
