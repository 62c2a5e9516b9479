package timeframe

import (
	"fmt"
	"sort"
)

// Registry holds every supported timeframe spec, keyed by label. Built once
// at startup; read-only afterwards.
type Registry struct {
	specs map[string]*Spec
	order []string
}

// NewRegistry builds a registry from the given specs, validating each.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]*Spec, len(specs))}
	for i := range specs {
		s := specs[i]
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid timeframe spec: %w", err)
		}
		if _, dup := r.specs[s.Label]; dup {
			return nil, fmt.Errorf("duplicate timeframe label %q", s.Label)
		}
		r.specs[s.Label] = &s
		r.order = append(r.order, s.Label)
	}
	return r, nil
}

// Get returns the spec for a label.
func (r *Registry) Get(label string) (*Spec, error) {
	s, ok := r.specs[label]
	if !ok {
		return nil, fmt.Errorf("unknown timeframe %q", label)
	}
	return s, nil
}

// All returns every spec in registration order.
func (r *Registry) All() []*Spec {
	out := make([]*Spec, 0, len(r.order))
	for _, label := range r.order {
		out = append(out, r.specs[label])
	}
	return out
}

// Labels returns all registered labels, sorted.
func (r *Registry) Labels() []string {
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// DefaultSpecs is the built-in timeframe set: rolling day multiples plus
// calendar-aligned and calendar-anchored week/month/quarter/year buckets.
func DefaultSpecs() []Spec {
	return []Spec{
		{Label: "2D", Unit: UnitDay, Count: 2, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 2},
		{Label: "3D", Unit: UnitDay, Count: 3, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 3},
		{Label: "7D", Unit: UnitDay, Count: 7, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 7},
		{Label: "14D", Unit: UnitDay, Count: 14, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 14},
		{Label: "30D", Unit: UnitDay, Count: 30, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 30},

		{Label: "1W_CAL", Unit: UnitWeek, Count: 1, Mode: ModeCalendar, Scheme: SchemeUS, NominalDays: 7},
		{Label: "1W_ISO", Unit: UnitWeek, Count: 1, Mode: ModeCalendar, Scheme: SchemeISO, NominalDays: 7},
		{Label: "1M_CAL", Unit: UnitMonth, Count: 1, Mode: ModeCalendar, Scheme: SchemeNone, NominalDays: 30},
		{Label: "3M_CAL", Unit: UnitQuarter, Count: 1, Mode: ModeCalendar, Scheme: SchemeNone, NominalDays: 91},
		{Label: "1Y_CAL", Unit: UnitYear, Count: 1, Mode: ModeCalendar, Scheme: SchemeNone, NominalDays: 365},

		{Label: "1W_ANC", Unit: UnitWeek, Count: 1, Mode: ModeCalendarAnchored, Scheme: SchemeUS, AllowPartialStart: true, NominalDays: 7},
		{Label: "1M_ANC", Unit: UnitMonth, Count: 1, Mode: ModeCalendarAnchored, Scheme: SchemeNone, AllowPartialStart: true, NominalDays: 30},
		{Label: "1Y_ANC", Unit: UnitYear, Count: 1, Mode: ModeCalendarAnchored, Scheme: SchemeNone, AllowPartialStart: true, NominalDays: 365},
	}
}

// DefaultRegistry builds the registry over DefaultSpecs. Panics on invalid
// built-ins since that is a programming error, not a runtime condition.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return r
}
