package domain

import "time"

// TimePeriod represents a time range for the report
type TimePeriod struct {
	Start    time.Time
	End      time.Time
	Duration int // in days
}

// NewTimePeriod returns the window of the given number of days ending at end.
// Both ends are inclusive, so a one-day window starts and ends on the same day.
func NewTimePeriod(end time.Time, days int) TimePeriod {
	return TimePeriod{
		Start:    end.AddDate(0, 0, -(days - 1)),
		End:      end,
		Duration: days,
	}
}
