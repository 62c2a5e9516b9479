// Package canonical converts raw per-day observations into the trusted base
// series the snapshot builder consumes. Deterministically repairable errors
// are repaired and flagged; everything else is rejected with a reason code.
// No mutation is silent: every repaired or rejected row is audited.
package canonical

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfabric/barforge/internal/series"
)

// Result is the output of canonicalizing one asset's batch.
type Result struct {
	Rows     []series.TrustedBaseRow
	Rejects  []RejectRecord
	Repaired int
}

// Canonicalize processes one asset's raw observations and returns the trusted
// base series plus the reject audit. Output rows are sorted by day and unique
// per calendar day (later duplicates rejected, first occurrence kept).
func Canonicalize(obs []series.Observation) Result {
	sorted := append([]series.Observation(nil), obs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	res := Result{}
	seen := make(map[time.Time]struct{}, len(sorted))

	for _, o := range sorted {
		row, outcome := canonicalizeOne(o)
		if outcome.Kind == OutcomeRejected {
			res.Rejects = append(res.Rejects, reject(o, outcome.Reason))
			continue
		}
		if _, dup := seen[row.Day]; dup {
			res.Rejects = append(res.Rejects, reject(o, ReasonDuplicateDay))
			continue
		}
		seen[row.Day] = struct{}{}
		if outcome.Kind == OutcomeRepaired {
			res.Repaired++
			log.Debug().
				Str("asset", o.AssetID).
				Time("ts", o.Timestamp).
				Bool("repaired_high", outcome.Flags.RepairedHigh).
				Bool("repaired_low", outcome.Flags.RepairedLow).
				Bool("clamped", outcome.Flags.Clamped).
				Msg("canonicalization repaired row")
		}
		res.Rows = append(res.Rows, row)
	}

	return res
}

// canonicalizeOne applies the repair-then-reject ladder to a single
// observation. Rules run in a fixed order so output is reproducible.
func canonicalizeOne(o series.Observation) (series.TrustedBaseRow, Outcome) {
	if o.AssetID == "" || o.Timestamp.IsZero() {
		return series.TrustedBaseRow{}, Outcome{Kind: OutcomeRejected, Reason: ReasonNullPK}
	}
	if o.TimeOpen == nil || o.TimeClose == nil {
		return series.TrustedBaseRow{}, Outcome{Kind: OutcomeRejected, Reason: ReasonNullTimeWindow}
	}
	if o.Open == nil || o.Close == nil {
		return series.TrustedBaseRow{}, Outcome{Kind: OutcomeRejected, Reason: ReasonNullPrice}
	}
	if o.TimeOpen.After(*o.TimeClose) {
		return series.TrustedBaseRow{}, Outcome{Kind: OutcomeRejected, Reason: ReasonTimeOpenGtTimeClose}
	}

	row := series.TrustedBaseRow{
		AssetID:   o.AssetID,
		Day:       o.Day(),
		TimeOpen:  o.TimeOpen.UTC(),
		TimeClose: o.TimeClose.UTC(),
		Open:      *o.Open,
		Close:     *o.Close,
		SrcLoadTS: o.SrcLoadTS,
	}
	if o.Volume != nil {
		row.Volume = *o.Volume
	}
	if o.MarketCap != nil {
		row.MarketCap = *o.MarketCap
	}

	var flags RepairFlags

	// High leg: a null or out-of-window time_high means the recorded extreme
	// cannot be trusted; collapse it onto the larger of the endpoints.
	if o.High == nil || o.TimeHigh == nil || outsideWindow(*o.TimeHigh, row.TimeOpen, row.TimeClose) {
		row.High = math.Max(row.Open, row.Close)
		if row.Open >= row.Close {
			row.TimeHigh = row.TimeOpen
		} else {
			row.TimeHigh = row.TimeClose
		}
		flags.RepairedHigh = true
	} else {
		row.High = *o.High
		row.TimeHigh = o.TimeHigh.UTC()
	}

	// Low leg, symmetric.
	if o.Low == nil || o.TimeLow == nil || outsideWindow(*o.TimeLow, row.TimeOpen, row.TimeClose) {
		row.Low = math.Min(row.Open, row.Close)
		if row.Open <= row.Close {
			row.TimeLow = row.TimeOpen
		} else {
			row.TimeLow = row.TimeClose
		}
		flags.RepairedLow = true
	} else {
		row.Low = *o.Low
		row.TimeLow = o.TimeLow.UTC()
	}

	// Re-validate OHLC; clamp once if still inconsistent.
	if !ohlcConsistent(row) {
		row.High = math.Max(math.Max(row.High, row.Open), math.Max(row.Close, row.Low))
		row.Low = math.Min(math.Min(row.Low, row.Open), math.Min(row.Close, row.High))
		flags.Clamped = true
	}
	if !ohlcConsistent(row) {
		return series.TrustedBaseRow{}, Outcome{Kind: OutcomeRejected, Reason: ReasonHighLtLowAfterRepair}
	}

	row.RepairedHigh = flags.RepairedHigh
	row.RepairedLow = flags.RepairedLow
	row.Clamped = flags.Clamped

	if flags.Any() {
		return row, Outcome{Kind: OutcomeRepaired, Flags: flags}
	}
	return row, Outcome{Kind: OutcomeUnchanged}
}

func outsideWindow(ts, open, close time.Time) bool {
	return ts.Before(open) || ts.After(close)
}

func ohlcConsistent(r series.TrustedBaseRow) bool {
	return r.High >= r.Low &&
		r.High >= math.Max(r.Open, r.Close) &&
		r.Low <= math.Min(r.Open, r.Close) &&
		!math.IsNaN(r.High) && !math.IsNaN(r.Low)
}

// reject builds the audit record, preserving raw values for post-hoc queries.
func reject(o series.Observation, reason RejectReason) RejectRecord {
	raw := map[string]interface{}{
		"open": o.Open, "high": o.High, "low": o.Low, "close": o.Close,
		"volume": o.Volume, "market_cap": o.MarketCap,
		"time_open": o.TimeOpen, "time_close": o.TimeClose,
		"time_high": o.TimeHigh, "time_low": o.TimeLow,
	}
	log.Debug().
		Str("asset", o.AssetID).
		Time("ts", o.Timestamp).
		Str("reason", string(reason)).
		Msg("canonicalization rejected row")
	return RejectRecord{
		AssetID:   o.AssetID,
		Timestamp: o.Timestamp,
		Reason:    reason,
		RawValues: raw,
	}
}
