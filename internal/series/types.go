package series

import (
	"time"
)

// Observation is one raw per-day record for an asset as delivered by the
// ingest source. Fields that may be null upstream are pointers; nothing here
// is validated yet. Read-only to this engine.
type Observation struct {
	AssetID   string     `json:"asset_id" db:"asset_id"`
	Timestamp time.Time  `json:"ts" db:"ts"`
	TimeOpen  *time.Time `json:"time_open" db:"time_open"`
	TimeClose *time.Time `json:"time_close" db:"time_close"`
	TimeHigh  *time.Time `json:"time_high" db:"time_high"`
	TimeLow   *time.Time `json:"time_low" db:"time_low"`
	Open      *float64   `json:"open" db:"open"`
	High      *float64   `json:"high" db:"high"`
	Low       *float64   `json:"low" db:"low"`
	Close     *float64   `json:"close" db:"close"`
	Volume    *float64   `json:"volume" db:"volume"`
	MarketCap *float64   `json:"market_cap" db:"market_cap"`
	SrcLoadTS time.Time  `json:"src_load_ts" db:"src_load_ts"`
}

// Day returns the observation's UTC calendar day (midnight-truncated).
func (o Observation) Day() time.Time {
	return DayOf(o.Timestamp)
}

// TrustedBaseRow is an Observation after canonicalization. Once emitted it is
// immutable and the OHLC/temporal invariants hold: time_open <= time_close,
// time_high and time_low inside that window, high >= max(open, close),
// low <= min(open, close), one row per (asset_id, calendar day).
type TrustedBaseRow struct {
	AssetID   string    `json:"asset_id" db:"asset_id"`
	Day       time.Time `json:"day" db:"day"`
	TimeOpen  time.Time `json:"time_open" db:"time_open"`
	TimeClose time.Time `json:"time_close" db:"time_close"`
	TimeHigh  time.Time `json:"time_high" db:"time_high"`
	TimeLow   time.Time `json:"time_low" db:"time_low"`
	Open      float64   `json:"open" db:"open"`
	High      float64   `json:"high" db:"high"`
	Low       float64   `json:"low" db:"low"`
	Close     float64   `json:"close" db:"close"`
	Volume    float64   `json:"volume" db:"volume"`
	MarketCap float64   `json:"market_cap" db:"market_cap"`

	// Provenance from the canonicalization pass.
	RepairedHigh bool `json:"repaired_high" db:"repaired_high"`
	RepairedLow  bool `json:"repaired_low" db:"repaired_low"`
	Clamped      bool `json:"clamped" db:"clamped"`

	SrcLoadTS time.Time `json:"src_load_ts" db:"src_load_ts"`
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(ts time.Time) time.Time {
	t := ts.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the inclusive calendar-day count from a through b.
// Returns 0 when b precedes a.
func DaysBetween(a, b time.Time) int {
	a, b = DayOf(a), DayOf(b)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}
