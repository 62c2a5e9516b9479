package timeframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekStart(t *testing.T) {
	wed := day(2024, time.January, 10) // Wednesday

	assert.Equal(t, day(2024, time.January, 7), WeekStart(wed, SchemeUS), "US weeks start Sunday")
	assert.Equal(t, day(2024, time.January, 8), WeekStart(wed, SchemeISO), "ISO weeks start Monday")

	sun := day(2024, time.January, 7)
	assert.Equal(t, sun, WeekStart(sun, SchemeUS), "Sunday is its own US week start")
	assert.Equal(t, day(2024, time.January, 1), WeekStart(sun, SchemeISO), "Sunday belongs to the prior ISO week")

	mon := day(2024, time.January, 8)
	assert.Equal(t, mon, WeekStart(mon, SchemeISO))
	assert.Equal(t, day(2024, time.January, 7), WeekStart(mon, SchemeUS))
}

func TestMonthWindow(t *testing.T) {
	start, end := MonthWindow(day(2024, time.February, 15))
	assert.Equal(t, day(2024, time.February, 1), start)
	assert.Equal(t, day(2024, time.February, 29), end, "2024 is a leap year")

	start, end = MonthWindow(day(2023, time.February, 1))
	assert.Equal(t, day(2023, time.February, 1), start)
	assert.Equal(t, day(2023, time.February, 28), end)

	start, end = MonthWindow(day(2024, time.December, 31))
	assert.Equal(t, day(2024, time.December, 1), start)
	assert.Equal(t, day(2024, time.December, 31), end)
}

func TestQuarterWindow(t *testing.T) {
	cases := []struct {
		in         time.Time
		start, end time.Time
	}{
		{day(2024, time.January, 1), day(2024, time.January, 1), day(2024, time.March, 31)},
		{day(2024, time.May, 15), day(2024, time.April, 1), day(2024, time.June, 30)},
		{day(2024, time.September, 30), day(2024, time.July, 1), day(2024, time.September, 30)},
		{day(2024, time.October, 1), day(2024, time.October, 1), day(2024, time.December, 31)},
	}
	for _, tc := range cases {
		start, end := QuarterWindow(tc.in)
		assert.Equal(t, tc.start, start, "quarter start for %s", tc.in.Format("2006-01-02"))
		assert.Equal(t, tc.end, end, "quarter end for %s", tc.in.Format("2006-01-02"))
	}
}

func TestYearWindow(t *testing.T) {
	start, end := YearWindow(day(2024, time.July, 4))
	assert.Equal(t, day(2024, time.January, 1), start)
	assert.Equal(t, day(2024, time.December, 31), end)
}

func TestBucketWindow(t *testing.T) {
	start, end, ok := BucketWindow(day(2024, time.January, 10), UnitWeek, SchemeUS)
	assert.True(t, ok)
	assert.Equal(t, day(2024, time.January, 7), start)
	assert.Equal(t, day(2024, time.January, 13), end)

	_, _, ok = BucketWindow(day(2024, time.January, 10), UnitDay, SchemeNone)
	assert.False(t, ok, "day unit has no calendar bucket")

	start, end, ok = BucketWindow(day(2024, time.August, 20), UnitQuarter, SchemeNone)
	assert.True(t, ok)
	assert.Equal(t, day(2024, time.July, 1), start)
	assert.Equal(t, day(2024, time.September, 30), end)
}
