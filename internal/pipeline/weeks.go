package pipeline

import "time"

const dayLayout = "2006-01-02"

// DateRange is an inclusive range of days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SplitIntoWeeks cuts [start, end] into consecutive ranges of at most seven
// days. The last range may be shorter. An inverted range yields nothing.
func SplitIntoWeeks(start, end time.Time) []DateRange {
	start, end = truncateDay(start), truncateDay(end)
	var weeks []DateRange
	for !start.After(end) {
		weekEnd := start.AddDate(0, 0, 6)
		if weekEnd.After(end) {
			weekEnd = end
		}
		weeks = append(weeks, DateRange{Start: start, End: weekEnd})
		start = weekEnd.AddDate(0, 0, 1)
	}
	return weeks
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
