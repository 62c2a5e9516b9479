package bars

import (
	"time"

	"github.com/quantfabric/barforge/internal/series"
)

// maxMissingWhere caps the missing_days_where list per snapshot so a long
// outage cannot bloat every row it touches.
const maxMissingWhere = 16

// missingDiag is the per-snapshot gap accounting: expected days run from the
// bar's expected start through the snapshot day; observed days are the base
// rows actually seen. Missing days decompose into start (before the first
// observed day), interior (between first and last observed) and end (after
// the last observed day) buckets.
type missingDiag struct {
	countDays     int
	missing       int
	missingStart  int
	missingInt    int
	missingEnd    int
	missingWhere  []string
	isMissingDays bool
}

// diagnoseMissing computes gap diagnostics for a bar as of snapshotDay.
// observed must be ascending and include snapshotDay as its last element.
func diagnoseMissing(expectedStart time.Time, observed []time.Time) missingDiag {
	d := missingDiag{countDays: len(observed)}
	if len(observed) == 0 {
		return d
	}
	first := observed[0]
	last := observed[len(observed)-1]

	expected := series.DaysBetween(expectedStart, last)
	d.missing = expected - len(observed)
	if d.missing <= 0 {
		d.missing = 0
		return d
	}
	d.isMissingDays = true

	d.missingStart = series.DaysBetween(expectedStart, first) - 1
	if d.missingStart < 0 {
		d.missingStart = 0
	}
	d.missingInt = series.DaysBetween(first, last) - len(observed)
	if d.missingInt < 0 {
		d.missingInt = 0
	}
	// The snapshot day itself is always observed, so the end bucket stays
	// empty during construction; it is kept for the persisted contract.
	d.missingEnd = d.missing - d.missingStart - d.missingInt

	seen := make(map[time.Time]struct{}, len(observed))
	for _, day := range observed {
		seen[day] = struct{}{}
	}
	for day := expectedStart; !day.After(last); day = day.AddDate(0, 0, 1) {
		if _, ok := seen[day]; ok {
			continue
		}
		if len(d.missingWhere) >= maxMissingWhere {
			break
		}
		d.missingWhere = append(d.missingWhere, day.Format("2006-01-02"))
	}
	return d
}
