package bars

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(open, high, low, close float64) SnapshotRow {
	d := day(2024, time.March, 1)
	return SnapshotRow{
		AssetID: "BTC", TF: "7D", BarSeq: 1,
		Open: open, High: high, Low: low, Close: close,
		TimeOpen:  d,
		TimeClose: d.Add(24 * time.Hour),
		TimeHigh:  d.Add(6 * time.Hour),
		TimeLow:   d.Add(12 * time.Hour),
	}
}

func TestEnforceSanityCleanRowsUntouched(t *testing.T) {
	in := []SnapshotRow{snap(100, 110, 90, 105)}
	want := in[0]
	out := EnforceSanity(in)
	require.Len(t, out, 1)
	assert.Equal(t, want, out[0])
}

func TestEnforceSanityClampsHigh(t *testing.T) {
	out := EnforceSanity([]SnapshotRow{snap(100, 95, 90, 105)})
	assert.Equal(t, 105.0, out[0].High, "high floored at max(open, close)")

	out = EnforceSanity([]SnapshotRow{snap(100, math.NaN(), 90, 105)})
	assert.Equal(t, 105.0, out[0].High)
}

func TestEnforceSanityClampsLow(t *testing.T) {
	// Up bar: low collapses onto the open.
	out := EnforceSanity([]SnapshotRow{snap(100, 110, 102, 105)})
	assert.Equal(t, 100.0, out[0].Low, "low capped at min(open, close)")
	assert.Equal(t, out[0].TimeOpen, out[0].TimeLow)

	// Down bar: low collapses onto the close.
	out = EnforceSanity([]SnapshotRow{snap(105, 110, math.NaN(), 100)})
	assert.Equal(t, 100.0, out[0].Low)
	assert.Equal(t, out[0].TimeClose, out[0].TimeLow)
}

func TestEnforceSanityRepairsTimeLowOutsideWindow(t *testing.T) {
	s := snap(100, 110, 90, 105)
	s.TimeLow = s.TimeClose.Add(time.Hour)

	out := EnforceSanity([]SnapshotRow{s})
	assert.Equal(t, 100.0, out[0].Low)
	assert.Equal(t, out[0].TimeOpen, out[0].TimeLow, "up bar bottoms at its open")
	assert.False(t, out[0].TimeLow.After(out[0].TimeClose))
}
