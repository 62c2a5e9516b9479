package timeframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	require.Len(t, reg.All(), 13)

	spec, err := reg.Get("7D")
	require.NoError(t, err)
	assert.Equal(t, ModeRolling, spec.Mode)
	assert.Equal(t, 7, spec.Count)

	spec, err = reg.Get("1W_ISO")
	require.NoError(t, err)
	assert.Equal(t, ModeCalendar, spec.Mode)
	assert.Equal(t, SchemeISO, spec.Scheme)

	spec, err = reg.Get("1M_ANC")
	require.NoError(t, err)
	assert.Equal(t, ModeCalendarAnchored, spec.Mode)
	assert.True(t, spec.AllowPartialStart)

	_, err = reg.Get("5m")
	assert.Error(t, err, "intraday labels are not registered")
}

func TestRegistryLabelsSorted(t *testing.T) {
	labels := DefaultRegistry().Labels()
	require.NotEmpty(t, labels)
	for i := 1; i < len(labels); i++ {
		assert.Less(t, labels[i-1], labels[i])
	}
}

func TestSpecValidate(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
		ok   bool
	}{
		{"valid rolling", Spec{Label: "7D", Unit: UnitDay, Count: 7, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 7}, true},
		{"rolling non-day unit", Spec{Label: "x", Unit: UnitWeek, Count: 1, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 7}, false},
		{"rolling with scheme", Spec{Label: "x", Unit: UnitDay, Count: 7, Mode: ModeRolling, Scheme: SchemeUS, NominalDays: 7}, false},
		{"calendar day unit", Spec{Label: "x", Unit: UnitDay, Count: 1, Mode: ModeCalendar, Scheme: SchemeNone, NominalDays: 1}, false},
		{"calendar count > 1", Spec{Label: "x", Unit: UnitMonth, Count: 2, Mode: ModeCalendar, Scheme: SchemeNone, NominalDays: 60}, false},
		{"calendar week no scheme", Spec{Label: "x", Unit: UnitWeek, Count: 1, Mode: ModeCalendar, Scheme: SchemeNone, NominalDays: 7}, false},
		{"calendar partial start", Spec{Label: "x", Unit: UnitMonth, Count: 1, Mode: ModeCalendar, Scheme: SchemeNone, AllowPartialStart: true, NominalDays: 30}, false},
		{"anchored without partial start", Spec{Label: "x", Unit: UnitMonth, Count: 1, Mode: ModeCalendarAnchored, Scheme: SchemeNone, NominalDays: 30}, false},
		{"zero count", Spec{Label: "x", Unit: UnitDay, Count: 0, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 1}, false},
		{"missing label", Spec{Unit: UnitDay, Count: 1, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 1}, false},
		{"unknown mode", Spec{Label: "x", Unit: UnitDay, Count: 1, Mode: "hourly", Scheme: SchemeNone, NominalDays: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Spec{
		{Label: "7D", Unit: UnitDay, Count: 7, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 7},
		{Label: "7D", Unit: UnitDay, Count: 7, Mode: ModeRolling, Scheme: SchemeNone, NominalDays: 7},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
