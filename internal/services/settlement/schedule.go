package settlement

import (
	"time"

	"github.com/mcoot/arcade-judge/internal/model"
)

// LocalTime shifts an instant into the audience's calendar by a fixed UTC offset.
// The result is expressed in UTC so its date fields read as the local date.
func LocalTime(now time.Time, offset time.Duration) time.Time {
	return now.UTC().Add(offset)
}

// DuePeriods returns the periods that settle at the given instant, in settlement
// order. Daily always settles; weekly on weeklyDay; monthly on day 1 of the month.
func DuePeriods(now time.Time, offset time.Duration, weeklyDay time.Weekday) []model.Period {
	local := LocalTime(now, offset)

	due := []model.Period{model.PeriodDaily}
	if local.Weekday() == weeklyDay {
		due = append(due, model.PeriodWeekly)
	}
	if local.Day() == 1 {
		due = append(due, model.PeriodMonthly)
	}
	return due
}
