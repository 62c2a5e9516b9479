package timeframe

import (
	"fmt"
)

// Unit is the base period a timeframe is counted in.
type Unit string

const (
	UnitDay     Unit = "day"
	UnitWeek    Unit = "week"
	UnitMonth   Unit = "month"
	UnitQuarter Unit = "quarter"
	UnitYear    Unit = "year"
)

// IndexingMode selects how observations are partitioned into bars.
type IndexingMode string

const (
	// ModeRolling assigns bars by observation count: the k-th observation
	// (1-indexed, arrival order) belongs to bar ((k-1) div N) + 1. Missing
	// calendar days never shift indices.
	ModeRolling IndexingMode = "rolling"

	// ModeCalendar uses true calendar buckets and suppresses the leading
	// partial bucket entirely; the first emitted bar starts on a bucket
	// boundary.
	ModeCalendar IndexingMode = "calendar"

	// ModeCalendarAnchored uses true calendar buckets and emits the leading
	// partial bucket, flagged is_partial_start, aligned to its anchor window.
	ModeCalendarAnchored IndexingMode = "calendar_anchored"
)

// Scheme is the calendar scheme for week bucketing.
type Scheme string

const (
	SchemeNone Scheme = "none"
	SchemeUS   Scheme = "US"  // weeks start Sunday
	SchemeISO  Scheme = "ISO" // weeks start Monday
)

// Spec describes one supported timeframe. Static configuration: created once
// at registry construction, never mutated at runtime.
type Spec struct {
	Label             string       `yaml:"label"`
	Unit              Unit         `yaml:"unit"`
	Count             int          `yaml:"count"`
	Mode              IndexingMode `yaml:"indexing_mode"`
	Scheme            Scheme       `yaml:"calendar_scheme"`
	AllowPartialStart bool         `yaml:"allow_partial_start"`
	NominalDays       int          `yaml:"nominal_days"`
}

// Validate checks internal consistency of a spec.
func (s *Spec) Validate() error {
	if s.Label == "" {
		return fmt.Errorf("timeframe spec missing label")
	}
	if s.Count < 1 {
		return fmt.Errorf("timeframe %s: count must be >= 1, got %d", s.Label, s.Count)
	}
	switch s.Mode {
	case ModeRolling:
		if s.Unit != UnitDay {
			return fmt.Errorf("timeframe %s: rolling mode requires day unit, got %s", s.Label, s.Unit)
		}
		if s.Scheme != SchemeNone {
			return fmt.Errorf("timeframe %s: rolling mode takes no calendar scheme", s.Label)
		}
	case ModeCalendar, ModeCalendarAnchored:
		if s.Unit == UnitDay {
			return fmt.Errorf("timeframe %s: calendar modes require week/month/quarter/year unit", s.Label)
		}
		if s.Count != 1 {
			return fmt.Errorf("timeframe %s: calendar modes support count=1 only, got %d", s.Label, s.Count)
		}
		if s.Unit == UnitWeek && s.Scheme != SchemeUS && s.Scheme != SchemeISO {
			return fmt.Errorf("timeframe %s: week bucketing requires US or ISO scheme", s.Label)
		}
		if s.Mode == ModeCalendar && s.AllowPartialStart {
			return fmt.Errorf("timeframe %s: calendar mode never emits partial start bars", s.Label)
		}
		if s.Mode == ModeCalendarAnchored && !s.AllowPartialStart {
			return fmt.Errorf("timeframe %s: calendar_anchored mode requires allow_partial_start", s.Label)
		}
	default:
		return fmt.Errorf("timeframe %s: unknown indexing mode %q", s.Label, s.Mode)
	}
	if s.NominalDays < 1 {
		return fmt.Errorf("timeframe %s: nominal_days must be >= 1", s.Label)
	}
	return nil
}
