package analysis

import "time"

// periodLayout is the canonical calendar-month bucket format.
const periodLayout = "2006-01"

// FormatPeriod buckets a timestamp into its calendar month.
func FormatPeriod(t time.Time) string {
	return t.Format(periodLayout)
}

// PeriodRange returns the contiguous sequence of months covering
// [start, end], in chronological order. Every month in the span appears
// exactly once, including months with no events.
func PeriodRange(start, end time.Time) []string {
	if end.Before(start) {
		return nil
	}

	var periods []string
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := dateOf(end)
	for !cur.After(last) {
		periods = append(periods, cur.Format(periodLayout))
		cur = cur.AddDate(0, 1, 0)
	}
	return periods
}

// dateOf truncates a timestamp to its calendar day.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
