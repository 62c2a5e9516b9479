package canonical

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/barforge/internal/series"
)

func fp(v float64) *float64     { return &v }
func tp(t time.Time) *time.Time { return &t }

// cleanObs is a fully populated, internally consistent observation for the
// given UTC calendar day.
func cleanObs(asset string, y int, m time.Month, d int) series.Observation {
	open := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	close := time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
	return series.Observation{
		AssetID:   asset,
		Timestamp: open,
		TimeOpen:  tp(open),
		TimeClose: tp(close),
		TimeHigh:  tp(open.Add(6 * time.Hour)),
		TimeLow:   tp(open.Add(18 * time.Hour)),
		Open:      fp(100),
		High:      fp(110),
		Low:       fp(90),
		Close:     fp(105),
		Volume:    fp(1000),
		MarketCap: fp(5e6),
		SrcLoadTS: close.Add(time.Minute),
	}
}

func TestCanonicalizeCleanRowUnchanged(t *testing.T) {
	res := Canonicalize([]series.Observation{cleanObs("BTC", 2024, time.March, 1)})

	require.Len(t, res.Rows, 1)
	assert.Empty(t, res.Rejects)
	assert.Zero(t, res.Repaired)

	row := res.Rows[0]
	assert.Equal(t, "BTC", row.AssetID)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), row.Day)
	assert.Equal(t, 110.0, row.High)
	assert.Equal(t, 90.0, row.Low)
	assert.False(t, row.RepairedHigh)
	assert.False(t, row.RepairedLow)
	assert.False(t, row.Clamped)
}

func TestCanonicalizeRejectReasons(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*series.Observation)
		reason RejectReason
	}{
		{"empty asset id", func(o *series.Observation) { o.AssetID = "" }, ReasonNullPK},
		{"zero timestamp", func(o *series.Observation) { o.Timestamp = time.Time{} }, ReasonNullPK},
		{"nil time_open", func(o *series.Observation) { o.TimeOpen = nil }, ReasonNullTimeWindow},
		{"nil time_close", func(o *series.Observation) { o.TimeClose = nil }, ReasonNullTimeWindow},
		{"nil open", func(o *series.Observation) { o.Open = nil }, ReasonNullPrice},
		{"nil close", func(o *series.Observation) { o.Close = nil }, ReasonNullPrice},
		{"inverted window", func(o *series.Observation) {
			o.TimeOpen, o.TimeClose = o.TimeClose, o.TimeOpen
		}, ReasonTimeOpenGtTimeClose},
		{"NaN high unrepairable", func(o *series.Observation) { o.High = fp(math.NaN()) }, ReasonHighLtLowAfterRepair},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := cleanObs("BTC", 2024, time.March, 1)
			tc.mutate(&o)
			res := Canonicalize([]series.Observation{o})

			assert.Empty(t, res.Rows)
			require.Len(t, res.Rejects, 1)
			assert.Equal(t, tc.reason, res.Rejects[0].Reason)
		})
	}
}

func TestCanonicalizeDuplicateDayKeepsFirst(t *testing.T) {
	first := cleanObs("BTC", 2024, time.March, 1)
	dup := cleanObs("BTC", 2024, time.March, 1)
	dup.Timestamp = dup.Timestamp.Add(2 * time.Hour)
	dup.Close = fp(999)

	res := Canonicalize([]series.Observation{first, dup})

	require.Len(t, res.Rows, 1)
	assert.Equal(t, 105.0, res.Rows[0].Close, "first occurrence wins")
	require.Len(t, res.Rejects, 1)
	assert.Equal(t, ReasonDuplicateDay, res.Rejects[0].Reason)
}

func TestCanonicalizeRepairsHighLeg(t *testing.T) {
	// Null time_high: the extreme collapses onto the larger endpoint.
	o := cleanObs("BTC", 2024, time.March, 1)
	o.TimeHigh = nil

	res := Canonicalize([]series.Observation{o})
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	assert.True(t, row.RepairedHigh)
	assert.Equal(t, 105.0, row.High, "max(open, close)")
	assert.Equal(t, row.TimeClose, row.TimeHigh, "close is the larger endpoint")
	assert.Equal(t, 1, res.Repaired)

	// Out-of-window time_high triggers the same repair.
	o = cleanObs("BTC", 2024, time.March, 2)
	o.TimeHigh = tp(o.TimeClose.Add(time.Hour))
	o.Open = fp(120) // open > close; high lands on time_open

	res = Canonicalize([]series.Observation{o})
	require.Len(t, res.Rows, 1)
	row = res.Rows[0]
	assert.True(t, row.RepairedHigh)
	assert.Equal(t, 120.0, row.High)
	assert.Equal(t, row.TimeOpen, row.TimeHigh)
}

func TestCanonicalizeRepairsLowLeg(t *testing.T) {
	o := cleanObs("BTC", 2024, time.March, 1)
	o.Low = nil
	o.TimeLow = nil

	res := Canonicalize([]series.Observation{o})
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	assert.True(t, row.RepairedLow)
	assert.False(t, row.RepairedHigh)
	assert.Equal(t, 100.0, row.Low, "min(open, close)")
	assert.Equal(t, row.TimeOpen, row.TimeLow, "open is the smaller endpoint")
}

func TestCanonicalizeClampsInconsistentOHLC(t *testing.T) {
	// High below both endpoints with trusted timestamps: not a leg repair,
	// but the re-validation clamp catches it.
	o := cleanObs("BTC", 2024, time.March, 1)
	o.High = fp(95)

	res := Canonicalize([]series.Observation{o})
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	assert.True(t, row.Clamped)
	assert.Equal(t, 105.0, row.High)
	assert.GreaterOrEqual(t, row.High, row.Low)
	assert.Equal(t, 1, res.Repaired)
}

func TestCanonicalizeSortsInput(t *testing.T) {
	a := cleanObs("BTC", 2024, time.March, 3)
	b := cleanObs("BTC", 2024, time.March, 1)
	c := cleanObs("BTC", 2024, time.March, 2)

	res := Canonicalize([]series.Observation{a, b, c})
	require.Len(t, res.Rows, 3)
	assert.True(t, res.Rows[0].Day.Before(res.Rows[1].Day))
	assert.True(t, res.Rows[1].Day.Before(res.Rows[2].Day))
}
