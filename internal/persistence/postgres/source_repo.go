package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfabric/barforge/internal/persistence"
	"github.com/quantfabric/barforge/internal/series"
)

// sourceRepo reads the raw observations table owned by the ingest pipeline.
type sourceRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewObservationSource creates the PostgreSQL observation source.
func NewObservationSource(db *sqlx.DB, timeout time.Duration) persistence.ObservationSource {
	return &sourceRepo{db: db, timeout: timeout}
}

func (r *sourceRepo) Assets(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var assets []string
	err := r.db.SelectContext(ctx, &assets,
		`SELECT DISTINCT asset_id FROM observations ORDER BY asset_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

func (r *sourceRepo) Range(ctx context.Context, assetID string) (persistence.SourceRange, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*), MIN(ts), MAX(ts)
		FROM observations
		WHERE asset_id = $1`

	sr := persistence.SourceRange{AssetID: assetID}
	var min, max *time.Time
	if err := r.db.QueryRowxContext(ctx, query, assetID).Scan(&sr.Count, &min, &max); err != nil {
		return sr, fmt.Errorf("failed to query source range: %w", err)
	}
	if min != nil {
		sr.DailyMin = series.DayOf(*min)
	}
	if max != nil {
		sr.DailyMax = series.DayOf(*max)
	}
	return sr, nil
}

func (r *sourceRepo) Fetch(ctx context.Context, assetID string, from, to time.Time) ([]series.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT asset_id, ts, time_open, time_close, time_high, time_low,
		       open, high, low, close, volume, market_cap, src_load_ts
		FROM observations
		WHERE asset_id = $1 AND ts >= $2 AND ts < $3 + INTERVAL '1 day'
		ORDER BY ts ASC`

	rows, err := r.db.QueryxContext(ctx, query, assetID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []series.Observation
	for rows.Next() {
		var o series.Observation
		if err := rows.Scan(
			&o.AssetID, &o.Timestamp, &o.TimeOpen, &o.TimeClose, &o.TimeHigh, &o.TimeLow,
			&o.Open, &o.High, &o.Low, &o.Close, &o.Volume, &o.MarketCap, &o.SrcLoadTS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}
	return out, nil
}
