// Package bars contains the deterministic bar snapshot builder and the OHLC
// sanity enforcer. The builder partitions a trusted base series into semantic
// bars under an injected boundary strategy and emits exactly one snapshot row
// per base observation. Two runs over identical input must produce identical
// output.
package bars

import (
	"fmt"
	"time"

	"github.com/quantfabric/barforge/internal/series"
	"github.com/quantfabric/barforge/internal/timeframe"
)

// BuildOptions tunes a build for incremental use.
type BuildOptions struct {
	// SeqOffset shifts bar numbering: the first bar built gets SeqOffset+1.
	// Used by forward appends that rebuild from the active bar's start.
	SeqOffset int

	// Resume marks an append slice: the input does not begin at the series
	// start, so leading-partial handling (suppression or partial-start
	// flagging) is skipped.
	Resume bool

	// ResumePartialStart carries the stored active bar's partial-start flag
	// into a resumed rebuild. The flag belongs to the whole semantic bar, so
	// rows appended to a partial leading bar must keep it. Only meaningful
	// with Resume.
	ResumePartialStart bool

	// IngestedAt stamps every emitted row. Provenance only; not part of the
	// deterministic bar content.
	IngestedAt time.Time
}

// Build constructs all snapshot rows for a full base series.
func Build(rows []series.TrustedBaseRow, spec *timeframe.Spec) ([]SnapshotRow, error) {
	return BuildWith(rows, spec, BuildOptions{})
}

// BuildWith constructs snapshot rows under explicit options. The input must
// be sorted ascending by day with exactly one row per calendar day; violating
// that is a caller bug and raises, it is never silently averaged away.
func BuildWith(rows []series.TrustedBaseRow, spec *timeframe.Spec, opts BuildOptions) ([]SnapshotRow, error) {
	if err := checkBaseSeries(rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	strategy := timeframe.StrategyFor(spec)
	out := make([]SnapshotRow, 0, len(rows))

	// Calendar-aligned mode delays emission until the first full bucket
	// boundary: a series starting mid-bucket produces nothing for that bucket.
	suppressing := false
	var suppressEnd time.Time
	if strategy.Mode() == timeframe.ModeCalendar && !opts.Resume {
		ws, we, _ := strategy.Window(rows[0].Day)
		if rows[0].Day.After(ws) {
			suppressing = true
			suppressEnd = we
		}
	}

	seq := opts.SeqOffset
	var acc *barAccum

	for i := range rows {
		row := &rows[i]
		if suppressing {
			if !row.Day.After(suppressEnd) {
				continue
			}
			suppressing = false
		}

		canonical := false
		if strategy.Mode() == timeframe.ModeRolling {
			if acc == nil || acc.pos == spec.Count {
				seq++
				acc = newBarAccum(seq, row, row.Day, time.Time{}, spec.Count, false)
			} else {
				acc.add(row)
			}
			canonical = acc.pos == spec.Count
		} else {
			ws, we, ok := strategy.Window(row.Day)
			if !ok {
				return nil, fmt.Errorf("timeframe %s: no calendar window for day %s", spec.Label, row.Day.Format("2006-01-02"))
			}
			if acc == nil || !acc.windowStart.Equal(ws) {
				seq++
				partial := false
				if acc == nil {
					if opts.Resume {
						partial = opts.ResumePartialStart
					} else {
						partial = strategy.EmitPartialStart() && row.Day.After(ws)
					}
				}
				acc = newBarAccum(seq, row, ws, we, series.DaysBetween(ws, we), partial)
			} else {
				acc.add(row)
			}
			canonical = row.Day.Equal(we)
		}

		out = append(out, acc.snapshot(row, spec, canonical, opts.IngestedAt))
	}

	return out, nil
}

// checkBaseSeries asserts the builder precondition: one asset, ascending
// days, no duplicates.
func checkBaseSeries(rows []series.TrustedBaseRow) error {
	for i := 1; i < len(rows); i++ {
		if rows[i].AssetID != rows[0].AssetID {
			return fmt.Errorf("mixed assets in base series: %s and %s", rows[0].AssetID, rows[i].AssetID)
		}
		prev, cur := rows[i-1].Day, rows[i].Day
		if cur.Equal(prev) {
			return fmt.Errorf("duplicate base day %s for asset %s: input must be canonicalized", cur.Format("2006-01-02"), rows[i].AssetID)
		}
		if cur.Before(prev) {
			return fmt.Errorf("base series not sorted: day %s after %s", cur.Format("2006-01-02"), prev.Format("2006-01-02"))
		}
	}
	return nil
}

// barAccum accumulates one semantic bar as base rows arrive.
type barAccum struct {
	seq          int
	windowStart  time.Time // bar start: bucket start (calendar) or first day (rolling)
	windowEnd    time.Time // zero for rolling
	tfDays       int
	partialStart bool

	pos      int
	open     float64
	timeOpen time.Time
	high     float64
	timeHigh time.Time
	low      float64
	timeLow  time.Time
	volume   float64

	observed []time.Time

	repairedHigh bool
	repairedLow  bool
}

func newBarAccum(seq int, row *series.TrustedBaseRow, windowStart, windowEnd time.Time, tfDays int, partialStart bool) *barAccum {
	return &barAccum{
		seq:          seq,
		windowStart:  windowStart,
		windowEnd:    windowEnd,
		tfDays:       tfDays,
		partialStart: partialStart,
		pos:          1,
		open:         row.Open,
		timeOpen:     row.TimeOpen,
		high:         row.High,
		timeHigh:     row.TimeHigh,
		low:          row.Low,
		timeLow:      row.TimeLow,
		volume:       row.Volume,
		observed:     []time.Time{row.Day},
		repairedHigh: row.RepairedHigh,
		repairedLow:  row.RepairedLow,
	}
}

// add folds the next base row into the bar. Extrema replace only on a strict
// improvement: on ties the earlier timestamp wins, in every mode, or OHLC
// output stops being reproducible.
func (a *barAccum) add(row *series.TrustedBaseRow) {
	a.pos++
	if row.High > a.high {
		a.high = row.High
		a.timeHigh = row.TimeHigh
	}
	if row.Low < a.low {
		a.low = row.Low
		a.timeLow = row.TimeLow
	}
	a.volume += row.Volume
	a.observed = append(a.observed, row.Day)
	a.repairedHigh = a.repairedHigh || row.RepairedHigh
	a.repairedLow = a.repairedLow || row.RepairedLow
}

// snapshot emits the row for the current base day. The canonical row's OHLC
// and extrema become the bar's one authoritative close.
func (a *barAccum) snapshot(row *series.TrustedBaseRow, spec *timeframe.Spec, canonical bool, ingestedAt time.Time) SnapshotRow {
	diag := diagnoseMissing(a.windowStart, a.observed)

	return SnapshotRow{
		AssetID:   row.AssetID,
		TF:        spec.Label,
		BarSeq:    a.seq,
		TimeClose: row.TimeClose,

		Open:      a.open,
		High:      a.high,
		Low:       a.low,
		Close:     row.Close,
		Volume:    a.volume,
		MarketCap: row.MarketCap,

		TimeOpen: a.timeOpen,
		TimeHigh: a.timeHigh,
		TimeLow:  a.timeLow,

		BarStart: a.windowStart,
		BarEnd:   a.windowEnd,
		TFMode:   spec.Mode,
		TFScheme: spec.Scheme,

		TFDays:         a.tfDays,
		PosInBar:       a.pos,
		IsPartialStart: a.partialStart,
		IsPartialEnd:   !canonical,
		Roll:           !canonical,

		CountDays:                diag.countDays,
		CountMissingDays:         diag.missing,
		CountMissingDaysStart:    diag.missingStart,
		CountMissingDaysInterior: diag.missingInt,
		CountMissingDaysEnd:      diag.missingEnd,
		MissingDaysWhere:         diag.missingWhere,
		IsMissingDays:            diag.isMissingDays,

		RepairedHigh: a.repairedHigh,
		RepairedLow:  a.repairedLow,
		SrcLoadTS:    row.SrcLoadTS,
		IngestedAt:   ingestedAt,
	}
}
