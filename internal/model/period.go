package model

import (
	"fmt"
	"time"
)

// Period identifies a settlement period
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// AllPeriods lists periods in settlement order
var AllPeriods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly}

// ScoreField returns the document field holding the period's score
func (p Period) ScoreField() string {
	switch p {
	case PeriodDaily:
		return "scoreDaily"
	case PeriodWeekly:
		return "scoreWeekly"
	case PeriodMonthly:
		return "scoreMonthly"
	}
	return ""
}

// Title returns the human-readable period name used in notifications
func (p Period) Title() string {
	switch p {
	case PeriodDaily:
		return "Daily"
	case PeriodWeekly:
		return "Weekly"
	case PeriodMonthly:
		return "Monthly"
	}
	return string(p)
}

// Valid reports whether p is a known period
func (p Period) Valid() bool {
	return p.ScoreField() != ""
}

// ParsePeriod converts a string into a Period
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
	return p, nil
}

// PeriodKey identifies one occurrence of a period, e.g. "weekly:2026-10-16"
type PeriodKey string

// NewPeriodKey builds the key for the period occurrence settling on the given local date
func NewPeriodKey(p Period, localDate time.Time) PeriodKey {
	return PeriodKey(fmt.Sprintf("%s:%s", p, localDate.Format(time.DateOnly)))
}
