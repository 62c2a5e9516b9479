package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfabric/barforge/internal/persistence"
)

// stateRepo persists refresh watermarks in PostgreSQL.
type stateRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewStateRepo creates the PostgreSQL refresh-state repository.
func NewStateRepo(db *sqlx.DB, timeout time.Duration) persistence.StateRepo {
	return &stateRepo{db: db, timeout: timeout}
}

func (r *stateRepo) Get(ctx context.Context, assetID, tf string) (*persistence.RefreshState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT asset_id, tf, daily_min_seen, daily_max_seen,
		       last_bar_seq, last_time_close, updated_at
		FROM refresh_state
		WHERE asset_id = $1 AND tf = $2`

	var st persistence.RefreshState
	err := r.db.QueryRowxContext(ctx, query, assetID, tf).Scan(
		&st.AssetID, &st.TF, &st.DailyMinSeen, &st.DailyMaxSeen,
		&st.LastBarSeq, &st.LastTimeClose, &st.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query refresh state: %w", err)
	}
	st.DailyMinSeen = st.DailyMinSeen.UTC()
	st.DailyMaxSeen = st.DailyMaxSeen.UTC()
	st.LastTimeClose = st.LastTimeClose.UTC()
	return &st, nil
}

func (r *stateRepo) Put(ctx context.Context, st persistence.RefreshState) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertState(ctx, tx, st); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *stateRepo) Touch(ctx context.Context, assetID, tf string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_state SET updated_at = $3 WHERE asset_id = $1 AND tf = $2`,
		assetID, tf, at)
	if err != nil {
		return fmt.Errorf("failed to touch refresh state: %w", err)
	}
	return nil
}

// upsertState writes the watermark row inside the caller's transaction so a
// run's snapshots and its state advance commit or roll back together.
func upsertState(ctx context.Context, tx *sqlx.Tx, st persistence.RefreshState) error {
	query := `
		INSERT INTO refresh_state (asset_id, tf, daily_min_seen, daily_max_seen,
		                           last_bar_seq, last_time_close, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (asset_id, tf) DO UPDATE SET
			daily_min_seen = EXCLUDED.daily_min_seen,
			daily_max_seen = EXCLUDED.daily_max_seen,
			last_bar_seq = EXCLUDED.last_bar_seq,
			last_time_close = EXCLUDED.last_time_close,
			updated_at = EXCLUDED.updated_at`

	if _, err := tx.ExecContext(ctx, query,
		st.AssetID, st.TF, st.DailyMinSeen, st.DailyMaxSeen,
		st.LastBarSeq, st.LastTimeClose, st.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert refresh state: %w", err)
	}
	return nil
}
