package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfabric/barforge/internal/canonical"
	"github.com/quantfabric/barforge/internal/persistence"
)

// rejectRepo appends canonicalization reject audit rows. The table is
// append-only and never read back into processing.
type rejectRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRejectRepo creates the PostgreSQL reject audit repository.
func NewRejectRepo(db *sqlx.DB, timeout time.Duration) persistence.RejectRepo {
	return &rejectRepo{db: db, timeout: timeout}
}

func (r *rejectRepo) WriteBatch(ctx context.Context, runID string, rejects []canonical.RejectRecord) error {
	if len(rejects) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bar_rejects (run_id, asset_id, ts, reason_code, raw_values)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("failed to prepare reject insert: %w", err)
	}
	defer stmt.Close()

	for _, rej := range rejects {
		raw, err := json.Marshal(rej.RawValues)
		if err != nil {
			return fmt.Errorf("failed to marshal reject raw values: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, rej.AssetID, rej.Timestamp, string(rej.Reason), raw); err != nil {
			return fmt.Errorf("failed to insert reject: %w", err)
		}
	}
	return tx.Commit()
}
