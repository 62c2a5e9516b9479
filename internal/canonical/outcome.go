package canonical

import (
	"time"
)

// RejectReason is a fixed taxonomy code attached to every rejected row.
type RejectReason string

const (
	ReasonNullPK               RejectReason = "null_pk"
	ReasonNullTimeWindow       RejectReason = "null_time_window"
	ReasonNullPrice            RejectReason = "null_price"
	ReasonTimeOpenGtTimeClose  RejectReason = "time_open_gt_time_close"
	ReasonDuplicateDay         RejectReason = "duplicate_day"
	ReasonHighLtLowAfterRepair RejectReason = "high_lt_low_after_repair"
)

// RepairFlags records which deterministic repairs were applied to a row.
type RepairFlags struct {
	RepairedHigh bool
	RepairedLow  bool
	Clamped      bool
}

// Any reports whether at least one repair was applied.
func (f RepairFlags) Any() bool {
	return f.RepairedHigh || f.RepairedLow || f.Clamped
}

// OutcomeKind tags the result of canonicalizing one observation.
type OutcomeKind int

const (
	OutcomeUnchanged OutcomeKind = iota
	OutcomeRepaired
	OutcomeRejected
)

// Outcome is the tagged result of canonicalizing one observation. Call sites
// switch on Kind and handle every case; there is no silent path.
type Outcome struct {
	Kind   OutcomeKind
	Flags  RepairFlags
	Reason RejectReason
}

// RejectRecord is the audit row for a rejected observation. Written for
// post-hoc inspection, never read back into processing.
type RejectRecord struct {
	AssetID   string                 `json:"asset_id" db:"asset_id"`
	Timestamp time.Time              `json:"ts" db:"ts"`
	Reason    RejectReason           `json:"reason_code" db:"reason_code"`
	RawValues map[string]interface{} `json:"raw_values" db:"raw_values"`
}
