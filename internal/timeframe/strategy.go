package timeframe

import (
	"time"
)

// BoundaryStrategy is the capability interface the snapshot builder is
// parameterized by. One builder, three boundary behaviors: rolling,
// calendar, calendar-anchored.
type BoundaryStrategy interface {
	// Mode identifies the indexing behavior.
	Mode() IndexingMode

	// Window returns the scheduled calendar window containing day d.
	// Rolling strategies have no calendar window and return ok == false.
	Window(d time.Time) (start, end time.Time, ok bool)

	// EmitPartialStart reports whether a leading partial bucket produces
	// snapshots (calendar-anchored) or is suppressed (calendar).
	EmitPartialStart() bool
}

type rollingStrategy struct{}

func (rollingStrategy) Mode() IndexingMode { return ModeRolling }

func (rollingStrategy) Window(time.Time) (time.Time, time.Time, bool) {
	return time.Time{}, time.Time{}, false
}

func (rollingStrategy) EmitPartialStart() bool { return false }

type calendarStrategy struct {
	unit        Unit
	scheme      Scheme
	emitPartial bool
	mode        IndexingMode
}

func (s calendarStrategy) Mode() IndexingMode { return s.mode }

func (s calendarStrategy) Window(d time.Time) (time.Time, time.Time, bool) {
	return BucketWindow(d, s.unit, s.scheme)
}

func (s calendarStrategy) EmitPartialStart() bool { return s.emitPartial }

// StrategyFor builds the boundary strategy for a spec. The spec must have
// passed Validate.
func StrategyFor(spec *Spec) BoundaryStrategy {
	switch spec.Mode {
	case ModeCalendar:
		return calendarStrategy{unit: spec.Unit, scheme: spec.Scheme, mode: ModeCalendar}
	case ModeCalendarAnchored:
		return calendarStrategy{unit: spec.Unit, scheme: spec.Scheme, emitPartial: true, mode: ModeCalendarAnchored}
	default:
		return rollingStrategy{}
	}
}
