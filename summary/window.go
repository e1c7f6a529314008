package summary

import "time"

// TimeWindow is a pair of UTC instants bounding a summary window.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NextWeekday returns the next occurrence of day on or after d. If d already
// falls on day the shift is zero.
func NextWeekday(d time.Time, day time.Weekday) time.Time {
	days := (int(day) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, days)
}

// DayWindow returns the UTC window for the calendar date of the given local
// time. The local day runs midnight through 23:59:59.999999, but both bounds
// resolve through the local-midnight timestamp, so Start and End come out as
// the same instant. Week windows rebuild their end bound with NextWeekday and
// are unaffected; day windows are zero-length as a result.
// TODO: resolve End from the end-of-day wall clock before daily summaries are
// enabled by default.
func DayWindow(date time.Time) TimeWindow {
	localStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	start := time.Unix(localStart.Unix(), 0).UTC()
	return TimeWindow{Start: start, End: start}
}

// WeekWindow returns the UTC window of the week containing date, where the
// week's last day is endOfWeek. date is any day within the week, not the
// week's first day.
func WeekWindow(date time.Time, endOfWeek time.Weekday) TimeWindow {
	day := DayWindow(date)
	return TimeWindow{
		Start: NextWeekday(day.Start, endOfWeek).AddDate(0, 0, -7),
		End:   NextWeekday(day.End, endOfWeek),
	}
}
