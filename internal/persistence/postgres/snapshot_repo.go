package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quantfabric/barforge/internal/bars"
	"github.com/quantfabric/barforge/internal/persistence"
	"github.com/quantfabric/barforge/internal/timeframe"
)

// snapshotRepo persists bar snapshot rows in PostgreSQL.
type snapshotRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotRepo creates the PostgreSQL snapshot repository.
func NewSnapshotRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotRepo {
	return &snapshotRepo{db: db, timeout: timeout}
}

const snapshotColumns = `
	asset_id, tf, bar_seq, time_close,
	open, high, low, close, volume, market_cap,
	time_open, time_high, time_low,
	bar_start, bar_end, tf_mode, tf_scheme,
	tf_days, pos_in_bar, is_partial_start, is_partial_end, roll,
	count_days, count_missing_days, count_missing_days_start,
	count_missing_days_interior, count_missing_days_end,
	missing_days_where, is_missing_days,
	repaired_high, repaired_low, src_load_ts, ingested_at`

const insertSnapshot = `
	INSERT INTO bar_snapshots (` + snapshotColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
	        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
	        $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
	        $31, $32, $33)
	ON CONFLICT (asset_id, tf, bar_seq, time_close) DO NOTHING`

func (r *snapshotRepo) Last(ctx context.Context, assetID, tf string) (*bars.SnapshotRow, error) {
	return r.edge(ctx, assetID, tf, "DESC")
}

func (r *snapshotRepo) First(ctx context.Context, assetID, tf string) (*bars.SnapshotRow, error) {
	return r.edge(ctx, assetID, tf, "ASC")
}

func (r *snapshotRepo) edge(ctx context.Context, assetID, tf, dir string) (*bars.SnapshotRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM bar_snapshots
		WHERE asset_id = $1 AND tf = $2
		ORDER BY time_close %s
		LIMIT 1`, snapshotColumns, dir)

	row := r.db.QueryRowxContext(ctx, query, assetID, tf)
	snap, err := scanSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query edge snapshot: %w", err)
	}
	return snap, nil
}

func (r *snapshotRepo) Exists(ctx context.Context, assetID, tf string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM bar_snapshots WHERE asset_id = $1 AND tf = $2)`,
		assetID, tf).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot existence: %w", err)
	}
	return exists, nil
}

// WriteRun upserts a run's snapshot rows and advances the watermark state in
// a single transaction. Replace mode deletes all existing bars for the pair
// first (delete-then-rebuild). Conflicting keys are left untouched: canonical
// rows are immutable and a deterministic re-run writes identical bytes.
func (r *snapshotRepo) WriteRun(ctx context.Context, rows []bars.SnapshotRow, st persistence.RefreshState, replace bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(rows)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM bar_snapshots WHERE asset_id = $1 AND tf = $2`,
			st.AssetID, st.TF); err != nil {
			return fmt.Errorf("failed to delete bars for rebuild: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, insertSnapshot)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		s := &rows[i]
		if _, err := stmt.ExecContext(ctx,
			s.AssetID, s.TF, s.BarSeq, s.TimeClose,
			s.Open, s.High, s.Low, s.Close, s.Volume, s.MarketCap,
			s.TimeOpen, s.TimeHigh, s.TimeLow,
			s.BarStart, nullTime(s.BarEnd), string(s.TFMode), string(s.TFScheme),
			s.TFDays, s.PosInBar, s.IsPartialStart, s.IsPartialEnd, s.Roll,
			s.CountDays, s.CountMissingDays, s.CountMissingDaysStart,
			s.CountMissingDaysInterior, s.CountMissingDaysEnd,
			pq.Array(s.MissingDaysWhere), s.IsMissingDays,
			s.RepairedHigh, s.RepairedLow, s.SrcLoadTS, s.IngestedAt,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot %s/%s seq %d: %w", s.AssetID, s.TF, s.BarSeq, err)
		}
	}

	if err := upsertState(ctx, tx, st); err != nil {
		return err
	}
	return tx.Commit()
}

// scanner abstracts *sqlx.Row and *sqlx.Rows for the shared scan helper.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row scanner) (*bars.SnapshotRow, error) {
	var s bars.SnapshotRow
	var barEnd sql.NullTime
	var mode, scheme string
	var where pq.StringArray

	err := row.Scan(
		&s.AssetID, &s.TF, &s.BarSeq, &s.TimeClose,
		&s.Open, &s.High, &s.Low, &s.Close, &s.Volume, &s.MarketCap,
		&s.TimeOpen, &s.TimeHigh, &s.TimeLow,
		&s.BarStart, &barEnd, &mode, &scheme,
		&s.TFDays, &s.PosInBar, &s.IsPartialStart, &s.IsPartialEnd, &s.Roll,
		&s.CountDays, &s.CountMissingDays, &s.CountMissingDaysStart,
		&s.CountMissingDaysInterior, &s.CountMissingDaysEnd,
		&where, &s.IsMissingDays,
		&s.RepairedHigh, &s.RepairedLow, &s.SrcLoadTS, &s.IngestedAt,
	)
	if err != nil {
		return nil, err
	}
	if barEnd.Valid {
		s.BarEnd = barEnd.Time.UTC()
	}
	s.TFMode = timeframe.IndexingMode(mode)
	s.TFScheme = timeframe.Scheme(scheme)
	s.MissingDaysWhere = []string(where)
	s.TimeClose = s.TimeClose.UTC()
	s.TimeOpen = s.TimeOpen.UTC()
	s.TimeHigh = s.TimeHigh.UTC()
	s.TimeLow = s.TimeLow.UTC()
	s.BarStart = s.BarStart.UTC()
	return &s, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
