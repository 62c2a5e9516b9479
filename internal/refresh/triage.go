package refresh

import (
	"github.com/quantfabric/barforge/internal/persistence"
	"github.com/quantfabric/barforge/internal/series"
)

// TriageAction is the per (asset, tf) decision for a run.
type TriageAction int

const (
	// ActionFullBuild builds all bars from the complete base series.
	ActionFullBuild TriageAction = iota

	// ActionSeed derives watermark state from pre-existing bars without
	// recomputing anything.
	ActionSeed

	// ActionRebuild deletes all bars for the pair and rebuilds from scratch.
	ActionRebuild

	// ActionNoop leaves bars alone; watermarks may still be touched.
	ActionNoop

	// ActionAppend extends forward from the active bar.
	ActionAppend
)

func (a TriageAction) String() string {
	switch a {
	case ActionFullBuild:
		return "full_build"
	case ActionSeed:
		return "seed"
	case ActionRebuild:
		return "rebuild"
	case ActionNoop:
		return "noop"
	case ActionAppend:
		return "append"
	default:
		return "unknown"
	}
}

// Decide is the pure triage ladder, evaluated each run against the current
// source range and stored state. No I/O; fully unit-testable.
//
// A source min older than the stored min is a backfill: historical data ahead
// of the prior first row invalidates every bar_seq under rolling indexing, so
// the only safe answer is delete plus full rebuild.
func Decide(src persistence.SourceRange, state *persistence.RefreshState, barsExist bool) TriageAction {
	switch {
	case state == nil && !barsExist:
		return ActionFullBuild
	case state == nil && barsExist:
		return ActionSeed
	case !barsExist:
		return ActionRebuild
	case series.DayOf(src.DailyMin).Before(series.DayOf(state.DailyMinSeen)):
		return ActionRebuild
	case !series.DayOf(src.DailyMax).After(series.DayOf(state.DailyMaxSeen)):
		return ActionNoop
	default:
		return ActionAppend
	}
}
