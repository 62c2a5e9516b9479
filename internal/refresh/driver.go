// Package refresh owns the incremental refresh state machine: per (asset, tf)
// triage, slice loading, carry-forward, and watermark advancement. Watermarks
// move only after a successful atomic write; any failure leaves them untouched
// so the next run retries the same window.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfabric/barforge/internal/bars"
	"github.com/quantfabric/barforge/internal/canonical"
	"github.com/quantfabric/barforge/internal/persistence"
	"github.com/quantfabric/barforge/internal/series"
	"github.com/quantfabric/barforge/internal/timeframe"
)

// Options tunes driver behavior.
type Options struct {
	// DryRun computes everything but writes nothing.
	DryRun bool

	// Now supplies the clock; defaults to time.Now. Tests pin it.
	Now func() time.Time
}

// TFReport is the outcome for one (asset, tf) pair in a run.
type TFReport struct {
	TF               string       `json:"tf"`
	Action           TriageAction `json:"-"`
	ActionName       string       `json:"action"`
	SnapshotsWritten int          `json:"snapshots_written"`
	CarryForward     bool         `json:"carry_forward,omitempty"`
	Error            string       `json:"error,omitempty"`
}

// AssetReport summarizes one asset's refresh across all its timeframes.
type AssetReport struct {
	AssetID  string        `json:"asset_id"`
	Repairs  int           `json:"repairs"`
	Rejects  int           `json:"rejects"`
	TFs      []TFReport    `json:"timeframes"`
	Duration time.Duration `json:"duration_ns"`
}

// Failed reports whether any timeframe errored.
func (r *AssetReport) Failed() bool {
	for _, tf := range r.TFs {
		if tf.Error != "" {
			return true
		}
	}
	return false
}

// Driver runs the refresh state machine for one asset at a time. A driver is
// safe for concurrent use across distinct assets; two workers must never
// process the same asset concurrently (enforced by work partitioning).
type Driver struct {
	repo persistence.Repository
	reg  *timeframe.Registry
	opts Options
}

// NewDriver wires a driver over the persistence surface.
func NewDriver(repo persistence.Repository, reg *timeframe.Registry, opts Options) *Driver {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Driver{repo: repo, reg: reg, opts: opts}
}

// tfPlan is the pre-pass triage result for one timeframe.
type tfPlan struct {
	spec   *timeframe.Spec
	state  *persistence.RefreshState
	last   *bars.SnapshotRow
	action TriageAction
	from   time.Time // earliest base day this plan needs; zero when none
}

// RefreshAsset triages and refreshes every requested timeframe for one asset.
// The base series is fetched and canonicalized once so all timeframes observe
// a consistent snapshot of it.
func (d *Driver) RefreshAsset(ctx context.Context, runID, assetID string, tfLabels []string) (*AssetReport, error) {
	started := d.opts.Now()
	report := &AssetReport{AssetID: assetID}

	src, err := d.repo.Source.Range(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("source range for %s: %w", assetID, err)
	}
	if src.Empty() {
		for _, label := range tfLabels {
			report.TFs = append(report.TFs, TFReport{TF: label, Action: ActionNoop, ActionName: ActionNoop.String()})
		}
		report.Duration = d.opts.Now().Sub(started)
		return report, nil
	}

	plans := make([]tfPlan, 0, len(tfLabels))
	var fetchFrom time.Time
	for _, label := range tfLabels {
		spec, err := d.reg.Get(label)
		if err != nil {
			return nil, err
		}
		plan := tfPlan{spec: spec}
		if plan.state, err = d.repo.States.Get(ctx, assetID, label); err != nil {
			return nil, fmt.Errorf("load state %s/%s: %w", assetID, label, err)
		}
		if plan.last, err = d.repo.Snapshots.Last(ctx, assetID, label); err != nil {
			return nil, fmt.Errorf("load last snapshot %s/%s: %w", assetID, label, err)
		}
		plan.action = Decide(src, plan.state, plan.last != nil)
		switch plan.action {
		case ActionFullBuild, ActionRebuild:
			plan.from = series.DayOf(src.DailyMin)
		case ActionAppend:
			plan.from = appendFrom(plan.last)
		}
		if !plan.from.IsZero() && (fetchFrom.IsZero() || plan.from.Before(fetchFrom)) {
			fetchFrom = plan.from
		}
		plans = append(plans, plan)
	}

	var trusted []series.TrustedBaseRow
	if !fetchFrom.IsZero() {
		obs, err := d.repo.Source.Fetch(ctx, assetID, fetchFrom, series.DayOf(src.DailyMax))
		if err != nil {
			return nil, fmt.Errorf("fetch observations for %s: %w", assetID, err)
		}
		res := canonical.Canonicalize(obs)
		trusted = res.Rows
		report.Repairs = res.Repaired
		report.Rejects = len(res.Rejects)
		if len(res.Rejects) > 0 && !d.opts.DryRun {
			if err := d.repo.Rejects.WriteBatch(ctx, runID, res.Rejects); err != nil {
				return nil, fmt.Errorf("write rejects for %s: %w", assetID, err)
			}
		}
	}

	for _, plan := range plans {
		report.TFs = append(report.TFs, d.runTF(ctx, assetID, plan, src, trusted))
	}

	report.Duration = d.opts.Now().Sub(started)
	return report, nil
}

// appendFrom returns the earliest base day an append needs: the active bar's
// start when the last bar is still open, or the day after the last close when
// it has been finalized.
func appendFrom(last *bars.SnapshotRow) time.Time {
	if last.Canonical() {
		return series.DayOf(last.TimeClose).AddDate(0, 0, 1)
	}
	return series.DayOf(last.BarStart)
}

func (d *Driver) runTF(ctx context.Context, assetID string, plan tfPlan, src persistence.SourceRange, trusted []series.TrustedBaseRow) TFReport {
	tfr := TFReport{TF: plan.spec.Label, Action: plan.action, ActionName: plan.action.String()}
	now := d.opts.Now()

	var err error
	switch plan.action {
	case ActionNoop:
		if !d.opts.DryRun {
			err = d.repo.States.Touch(ctx, assetID, plan.spec.Label, now)
		}

	case ActionSeed:
		err = d.seed(ctx, assetID, plan, src, now)

	case ActionFullBuild, ActionRebuild:
		tfr.SnapshotsWritten, err = d.fullBuild(ctx, plan, src, trusted, now, plan.action == ActionRebuild)

	case ActionAppend:
		tfr.SnapshotsWritten, tfr.CarryForward, err = d.append(ctx, plan, src, trusted, now)
	}

	if err != nil {
		tfr.Error = err.Error()
		log.Error().
			Err(err).
			Str("asset", assetID).
			Str("tf", plan.spec.Label).
			Str("action", plan.action.String()).
			Msg("refresh failed; watermarks left untouched")
	}
	return tfr
}

// seed derives watermark state from pre-existing bars without recomputing.
// The observed minimum comes from the first bar's start so a later, earlier
// source minimum still registers as a backfill.
func (d *Driver) seed(ctx context.Context, assetID string, plan tfPlan, src persistence.SourceRange, now time.Time) error {
	first, err := d.repo.Snapshots.First(ctx, assetID, plan.spec.Label)
	if err != nil {
		return fmt.Errorf("load first snapshot: %w", err)
	}
	if first == nil || plan.last == nil {
		return fmt.Errorf("seed requested but no bars found for %s/%s", assetID, plan.spec.Label)
	}
	st := persistence.RefreshState{
		AssetID:       assetID,
		TF:            plan.spec.Label,
		DailyMinSeen:  series.DayOf(first.BarStart),
		DailyMaxSeen:  series.DayOf(plan.last.TimeClose),
		LastBarSeq:    plan.last.BarSeq,
		LastTimeClose: plan.last.TimeClose,
		UpdatedAt:     now,
	}
	if d.opts.DryRun {
		return nil
	}
	return d.repo.States.Put(ctx, st)
}

func (d *Driver) fullBuild(ctx context.Context, plan tfPlan, src persistence.SourceRange, trusted []series.TrustedBaseRow, now time.Time, replace bool) (int, error) {
	rows := sliceFrom(trusted, series.DayOf(src.DailyMin))
	snaps, err := bars.BuildWith(rows, plan.spec, bars.BuildOptions{IngestedAt: now})
	if err != nil {
		return 0, fmt.Errorf("build: %w", err)
	}
	snaps = bars.EnforceSanity(snaps)
	if len(snaps) == 0 && !replace {
		// Nothing emitted (all rows rejected, or the series has not reached
		// the first calendar boundary yet). Stay stateless so the next run
		// re-triages from scratch.
		return 0, nil
	}

	st := persistence.RefreshState{
		AssetID:      src.AssetID,
		TF:           plan.spec.Label,
		DailyMinSeen: series.DayOf(src.DailyMin),
		DailyMaxSeen: series.DayOf(src.DailyMax),
		UpdatedAt:    now,
	}
	if n := len(snaps); n > 0 {
		st.LastBarSeq = snaps[n-1].BarSeq
		st.LastTimeClose = snaps[n-1].TimeClose
	}
	if d.opts.DryRun {
		return len(snaps), nil
	}
	if err := d.repo.Snapshots.WriteRun(ctx, snaps, st, replace); err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}
	return len(snaps), nil
}

// append extends forward from the active bar. The slice is rebuilt from the
// active bar's start unless the single-new-day carry-forward fast path
// applies, in which case the new snapshot derives from the stored one in
// constant time.
func (d *Driver) append(ctx context.Context, plan tfPlan, src persistence.SourceRange, trusted []series.TrustedBaseRow, now time.Time) (int, bool, error) {
	last := plan.last
	lastDay := series.DayOf(last.TimeClose)
	rows := sliceFrom(trusted, appendFrom(last))

	newDays := 0
	for i := range rows {
		if rows[i].Day.After(lastDay) {
			newDays++
		}
	}
	if newDays == 0 {
		// Source advanced but every new row was rejected. Record the new
		// observed max so the run is not retried forever; bars are untouched.
		st := *plan.state
		st.DailyMaxSeen = series.DayOf(src.DailyMax)
		st.UpdatedAt = now
		if d.opts.DryRun {
			return 0, false, nil
		}
		return 0, false, d.repo.States.Put(ctx, st)
	}

	if snap, ok := carryForward(last, rows, plan.spec, now); ok {
		out := bars.EnforceSanity([]bars.SnapshotRow{snap})
		st := stateAfter(plan.state, src, &out[0], now)
		if d.opts.DryRun {
			return 1, true, nil
		}
		if err := d.repo.Snapshots.WriteRun(ctx, out, st, false); err != nil {
			return 0, false, fmt.Errorf("write carry-forward: %w", err)
		}
		return 1, true, nil
	}

	seqOffset := last.BarSeq - 1
	if last.Canonical() {
		seqOffset = last.BarSeq
	}
	snaps, err := bars.BuildWith(rows, plan.spec, bars.BuildOptions{
		SeqOffset:          seqOffset,
		Resume:             true,
		ResumePartialStart: !last.Canonical() && last.IsPartialStart,
		IngestedAt:         now,
	})
	if err != nil {
		return 0, false, fmt.Errorf("build append slice: %w", err)
	}

	// Rows at or before the stored watermark already exist and are
	// byte-identical by determinism; only the new tail is written.
	keep := snaps[:0:0]
	for i := range snaps {
		if snaps[i].TimeClose.After(last.TimeClose) {
			keep = append(keep, snaps[i])
		}
	}
	keep = bars.EnforceSanity(keep)
	if len(keep) == 0 {
		return 0, false, nil
	}

	st := stateAfter(plan.state, src, &keep[len(keep)-1], now)
	if d.opts.DryRun {
		return len(keep), false, nil
	}
	if err := d.repo.Snapshots.WriteRun(ctx, keep, st, false); err != nil {
		return 0, false, fmt.Errorf("write append: %w", err)
	}
	return len(keep), false, nil
}

// carryForward attempts the constant-time active-bar update. Safe only when
// all of: the active bar is still open, exactly one new day arrived, that day
// is exactly the next calendar day (no tail gap), and it stays inside the
// same bar. The strict-improvement extrema update preserves the
// earliest-timestamp tie-break, so the result matches a full recompute.
func carryForward(last *bars.SnapshotRow, rows []series.TrustedBaseRow, spec *timeframe.Spec, now time.Time) (bars.SnapshotRow, bool) {
	if last.Canonical() {
		return bars.SnapshotRow{}, false
	}
	lastDay := series.DayOf(last.TimeClose)

	var nr *series.TrustedBaseRow
	fresh := 0
	for i := range rows {
		if rows[i].Day.After(lastDay) {
			fresh++
			nr = &rows[i]
		}
	}
	if fresh != 1 || !nr.Day.Equal(lastDay.AddDate(0, 0, 1)) {
		return bars.SnapshotRow{}, false
	}

	sameBar := false
	canonical := false
	switch spec.Mode {
	case timeframe.ModeRolling:
		sameBar = last.PosInBar+1 <= spec.Count
		canonical = last.PosInBar+1 == spec.Count
	default:
		sameBar = !nr.Day.After(last.BarEnd)
		canonical = nr.Day.Equal(last.BarEnd)
	}
	if !sameBar {
		return bars.SnapshotRow{}, false
	}

	s := *last
	s.TimeClose = nr.TimeClose
	s.Close = nr.Close
	s.MarketCap = nr.MarketCap
	if nr.High > s.High {
		s.High = nr.High
		s.TimeHigh = nr.TimeHigh
	}
	if nr.Low < s.Low {
		s.Low = nr.Low
		s.TimeLow = nr.TimeLow
	}
	s.Volume += nr.Volume
	s.PosInBar++
	s.CountDays++
	s.IsPartialEnd = !canonical
	s.Roll = !canonical
	s.RepairedHigh = s.RepairedHigh || nr.RepairedHigh
	s.RepairedLow = s.RepairedLow || nr.RepairedLow
	s.SrcLoadTS = nr.SrcLoadTS
	s.IngestedAt = now
	return s, true
}

// stateAfter advances watermarks past a successful forward write. The stored
// minimum never moves here; only a rebuild resets it.
func stateAfter(prev *persistence.RefreshState, src persistence.SourceRange, lastWritten *bars.SnapshotRow, now time.Time) persistence.RefreshState {
	st := *prev
	st.DailyMaxSeen = series.DayOf(src.DailyMax)
	st.LastBarSeq = lastWritten.BarSeq
	st.LastTimeClose = lastWritten.TimeClose
	st.UpdatedAt = now
	return st
}

// sliceFrom returns the tail of trusted rows with Day >= from.
func sliceFrom(rows []series.TrustedBaseRow, from time.Time) []series.TrustedBaseRow {
	for i := range rows {
		if !rows[i].Day.Before(from) {
			return rows[i:]
		}
	}
	return nil
}
