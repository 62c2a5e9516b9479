// Package persistence defines the repository contracts between the refresh
// engine and its backing store, plus the persisted watermark types. Concrete
// implementations live in subpackages (postgres, rediscache).
package persistence

import (
	"context"
	"time"

	"github.com/quantfabric/barforge/internal/bars"
	"github.com/quantfabric/barforge/internal/canonical"
	"github.com/quantfabric/barforge/internal/series"
)

// SourceRange summarizes the raw observations currently available for one
// asset: the min and max calendar day and the row count.
type SourceRange struct {
	AssetID  string    `json:"asset_id" db:"asset_id"`
	DailyMin time.Time `json:"daily_min" db:"daily_min"`
	DailyMax time.Time `json:"daily_max" db:"daily_max"`
	Count    int       `json:"count" db:"count"`
}

// Empty reports whether the source holds no rows for the asset.
func (r SourceRange) Empty() bool { return r.Count == 0 }

// RefreshState is the per (asset_id, tf) watermark record driving triage.
// It advances monotonically and only on successful runs; a failed run leaves
// it untouched so the next run retries the same window.
type RefreshState struct {
	AssetID       string    `json:"asset_id" db:"asset_id"`
	TF            string    `json:"tf" db:"tf"`
	DailyMinSeen  time.Time `json:"daily_min_seen" db:"daily_min_seen"`
	DailyMaxSeen  time.Time `json:"daily_max_seen" db:"daily_max_seen"`
	LastBarSeq    int       `json:"last_bar_seq" db:"last_bar_seq"`
	LastTimeClose time.Time `json:"last_time_close" db:"last_time_close"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ObservationSource reads the raw per-day observations owned by the ingest
// pipeline. Read-only to this engine.
type ObservationSource interface {
	// Assets lists every asset id present in the source.
	Assets(ctx context.Context) ([]string, error)

	// Range returns the source min/max day and count for an asset.
	Range(ctx context.Context, assetID string) (SourceRange, error)

	// Fetch returns observations for an asset with days in [from, to],
	// ordered by timestamp.
	Fetch(ctx context.Context, assetID string, from, to time.Time) ([]series.Observation, error)
}

// SnapshotRepo persists bar snapshot rows. Upserts are idempotent on the key
// (asset_id, tf, bar_seq, time_close); canonical rows are immutable and a
// deterministic re-run writes identical bytes, so conflicts are no-ops.
type SnapshotRepo interface {
	// Last returns the most recent snapshot row for (asset, tf), or nil.
	Last(ctx context.Context, assetID, tf string) (*bars.SnapshotRow, error)

	// First returns the earliest snapshot row for (asset, tf), or nil. Used
	// when seeding watermarks from pre-existing bars.
	First(ctx context.Context, assetID, tf string) (*bars.SnapshotRow, error)

	// Exists reports whether any bars exist for (asset, tf).
	Exists(ctx context.Context, assetID, tf string) (bool, error)

	// WriteRun upserts rows and advances the refresh state as one atomic
	// unit. With replace set, existing bars for (asset, tf) are deleted in
	// the same transaction before the write (delete-then-rebuild).
	WriteRun(ctx context.Context, rows []bars.SnapshotRow, st RefreshState, replace bool) error
}

// StateRepo persists refresh watermarks. Separate from SnapshotRepo.WriteRun
// for the triage actions that move state without touching bars (seed, no-op).
type StateRepo interface {
	// Get returns the state for (asset, tf), or nil when none exists.
	Get(ctx context.Context, assetID, tf string) (*RefreshState, error)

	// Put inserts or replaces the state row.
	Put(ctx context.Context, st RefreshState) error

	// Touch refreshes updated_at without moving any watermark.
	Touch(ctx context.Context, assetID, tf string, at time.Time) error
}

// RejectRepo appends canonicalization reject audit rows. Write-only from the
// engine's perspective.
type RejectRepo interface {
	WriteBatch(ctx context.Context, runID string, rejects []canonical.RejectRecord) error
}

// Repository aggregates the persistence surface handed to the runner.
type Repository struct {
	Source    ObservationSource
	Snapshots SnapshotRepo
	States    StateRepo
	Rejects   RejectRepo
}
