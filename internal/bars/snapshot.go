package bars

import (
	"time"

	"github.com/quantfabric/barforge/internal/timeframe"
)

// SnapshotRow is the persisted unit: one row per base daily close observed so
// far for a semantic bar. Key = (asset_id, tf, bar_seq, time_close). Rows
// written canonical (is_partial_end == false) are immutable; later runs must
// reproduce them byte-identically, never supersede them.
//
// The persisted layout is the reconstruction contract: bar_start/bar_end,
// tf_mode and tf_scheme together allow any bar's boundaries to be recomputed
// from stored metadata alone, without replaying raw history.
type SnapshotRow struct {
	AssetID   string    `json:"asset_id" db:"asset_id"`
	TF        string    `json:"tf" db:"tf"`
	BarSeq    int       `json:"bar_seq" db:"bar_seq"`
	TimeClose time.Time `json:"time_close" db:"time_close"`

	Open      float64 `json:"open" db:"open"`
	High      float64 `json:"high" db:"high"`
	Low       float64 `json:"low" db:"low"`
	Close     float64 `json:"close" db:"close"`
	Volume    float64 `json:"volume" db:"volume"`
	MarketCap float64 `json:"market_cap" db:"market_cap"`

	TimeOpen time.Time `json:"time_open" db:"time_open"`
	TimeHigh time.Time `json:"time_high" db:"time_high"`
	TimeLow  time.Time `json:"time_low" db:"time_low"`

	// Bar identity metadata. BarEnd is zero for rolling bars, whose end is
	// determined by observation count rather than the calendar.
	BarStart time.Time              `json:"bar_start" db:"bar_start"`
	BarEnd   time.Time              `json:"bar_end" db:"bar_end"`
	TFMode   timeframe.IndexingMode `json:"tf_mode" db:"tf_mode"`
	TFScheme timeframe.Scheme       `json:"tf_scheme" db:"tf_scheme"`

	TFDays         int  `json:"tf_days" db:"tf_days"`
	PosInBar       int  `json:"pos_in_bar" db:"pos_in_bar"`
	IsPartialStart bool `json:"is_partial_start" db:"is_partial_start"`
	IsPartialEnd   bool `json:"is_partial_end" db:"is_partial_end"`

	// Roll marks a preview row. It mirrors IsPartialEnd at daily granularity:
	// true until the bar's canonical close.
	Roll bool `json:"roll" db:"roll"`

	// Missing-day diagnostics. Purely informational; gaps never block
	// emission and never invent data.
	CountDays                int      `json:"count_days" db:"count_days"`
	CountMissingDays         int      `json:"count_missing_days" db:"count_missing_days"`
	CountMissingDaysStart    int      `json:"count_missing_days_start" db:"count_missing_days_start"`
	CountMissingDaysInterior int      `json:"count_missing_days_interior" db:"count_missing_days_interior"`
	CountMissingDaysEnd      int      `json:"count_missing_days_end" db:"count_missing_days_end"`
	MissingDaysWhere         []string `json:"missing_days_where" db:"missing_days_where"`
	IsMissingDays            bool     `json:"is_missing_days" db:"is_missing_days"`

	// Provenance.
	RepairedHigh bool      `json:"repaired_high" db:"repaired_high"`
	RepairedLow  bool      `json:"repaired_low" db:"repaired_low"`
	SrcLoadTS    time.Time `json:"src_load_ts" db:"src_load_ts"`
	IngestedAt   time.Time `json:"ingested_at" db:"ingested_at"`
}

// Canonical reports whether this row is the bar's one authoritative close.
func (s *SnapshotRow) Canonical() bool {
	return !s.IsPartialEnd
}
