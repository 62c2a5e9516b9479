package timeframe

import (
	"time"
)

// Calendar bucket math. All inputs and outputs are UTC midnight calendar
// days; windows are inclusive on both ends.

// WeekStart returns the first day of the week containing d under the scheme.
func WeekStart(d time.Time, scheme Scheme) time.Time {
	wd := int(d.Weekday()) // Sunday == 0
	offset := wd
	if scheme == SchemeISO {
		offset = (wd + 6) % 7 // Monday == 0
	}
	return d.AddDate(0, 0, -offset)
}

// MonthWindow returns the first and last day of the month containing d.
func MonthWindow(d time.Time) (time.Time, time.Time) {
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).AddDate(0, 0, -1)
	return start, end
}

// QuarterWindow returns the first and last day of the calendar quarter
// containing d.
func QuarterWindow(d time.Time) (time.Time, time.Time) {
	qm := time.Month(((int(d.Month())-1)/3)*3 + 1)
	start := time.Date(d.Year(), qm, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0).AddDate(0, 0, -1)
	return start, end
}

// YearWindow returns January 1 and December 31 of d's year.
func YearWindow(d time.Time) (time.Time, time.Time) {
	start := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(d.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	return start, end
}

// BucketWindow returns the calendar window containing d for the given unit
// and scheme. Day unit has no calendar bucket.
func BucketWindow(d time.Time, unit Unit, scheme Scheme) (time.Time, time.Time, bool) {
	switch unit {
	case UnitWeek:
		start := WeekStart(d, scheme)
		return start, start.AddDate(0, 0, 6), true
	case UnitMonth:
		start, end := MonthWindow(d)
		return start, end, true
	case UnitQuarter:
		start, end := QuarterWindow(d)
		return start, end, true
	case UnitYear:
		start, end := YearWindow(d)
		return start, end, true
	default:
		return time.Time{}, time.Time{}, false
	}
}
