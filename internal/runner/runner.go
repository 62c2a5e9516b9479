// Package runner orchestrates a refresh run: it partitions work by asset,
// fans it out to a bounded worker pool, and aggregates the per-asset reports
// into a run summary. One worker owns all timeframes for its asset so every
// timeframe observes the same base-series snapshot; no two workers ever
// touch the same asset.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quantfabric/barforge/internal/config"
	barlog "github.com/quantfabric/barforge/internal/log"
	"github.com/quantfabric/barforge/internal/metrics"
	"github.com/quantfabric/barforge/internal/persistence"
	"github.com/quantfabric/barforge/internal/refresh"
	"github.com/quantfabric/barforge/internal/timeframe"
)

// Summary is the batch-level run report.
type Summary struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	DryRun     bool                   `json:"dry_run,omitempty"`
	Assets     []*refresh.AssetReport `json:"assets"`
	Repairs    int                    `json:"repairs"`
	Rejects    int                    `json:"rejects"`
	Snapshots  int                    `json:"snapshots_written"`
	Failed     int                    `json:"failed_assets"`
}

// Runner executes refresh runs over the persistence surface.
type Runner struct {
	repo     persistence.Repository
	reg      *timeframe.Registry
	cfg      config.RefreshConfig
	met      *metrics.Metrics
	dryRun   bool
	progress barlog.Mode
}

// New wires a runner. met may be nil when metrics are not exported.
func New(repo persistence.Repository, reg *timeframe.Registry, cfg config.RefreshConfig, met *metrics.Metrics, dryRun bool, progress barlog.Mode) *Runner {
	repo.Source = guardSource(repo.Source, cfg.FetchRPS)
	return &Runner{repo: repo, reg: reg, cfg: cfg, met: met, dryRun: dryRun, progress: progress}
}

// Run refreshes the given assets across the given timeframes. Empty slices
// mean all source assets and the full registry.
func (r *Runner) Run(ctx context.Context, assets, tfs []string) (*Summary, error) {
	sum := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		DryRun:    r.dryRun,
	}

	var err error
	if len(assets) == 0 {
		if assets, err = r.repo.Source.Assets(ctx); err != nil {
			return nil, fmt.Errorf("list source assets: %w", err)
		}
	}
	if len(tfs) == 0 {
		tfs = r.reg.Labels()
	}

	log.Info().
		Str("run_id", sum.RunID).
		Int("assets", len(assets)).
		Strs("timeframes", tfs).
		Bool("dry_run", r.dryRun).
		Msg("refresh run starting")

	driver := refresh.NewDriver(r.repo, r.reg, refresh.Options{DryRun: r.dryRun})
	prog := barlog.NewProgress("refresh", len(assets), r.progress)

	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan string)
	type result struct {
		report *refresh.AssetReport
		err    error
		asset  string
	}
	results := make(chan result, len(assets))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range jobs {
				rep, err := driver.RefreshAsset(ctx, sum.RunID, asset, tfs)
				results <- result{report: rep, err: err, asset: asset}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, asset := range assets {
			select {
			case jobs <- asset:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			sum.Failed++
			log.Error().Err(res.err).Str("asset", res.asset).Msg("asset refresh failed")
			prog.Step(res.asset, "failed")
			continue
		}
		r.record(sum, res.report)
		prog.Step(res.asset, "ok")
	}
	prog.Finish()

	sum.FinishedAt = time.Now().UTC()
	if r.met != nil {
		outcome := "ok"
		if sum.Failed > 0 {
			outcome = "partial_failure"
		}
		r.met.RunsTotal.WithLabelValues(outcome).Inc()
	}

	log.Info().
		Str("run_id", sum.RunID).
		Int("repairs", sum.Repairs).
		Int("rejects", sum.Rejects).
		Int("snapshots", sum.Snapshots).
		Int("failed_assets", sum.Failed).
		Dur("duration", sum.FinishedAt.Sub(sum.StartedAt)).
		Msg("refresh run finished")

	if !r.dryRun {
		if err := r.writeArtifact(sum); err != nil {
			log.Warn().Err(err).Msg("failed to write run summary artifact")
		}
	}
	return sum, nil
}

// record folds one asset report into the summary and metrics.
func (r *Runner) record(sum *Summary, rep *refresh.AssetReport) {
	sum.Assets = append(sum.Assets, rep)
	sum.Repairs += rep.Repairs
	sum.Rejects += rep.Rejects
	if rep.Failed() {
		sum.Failed++
	}
	for _, tf := range rep.TFs {
		sum.Snapshots += tf.SnapshotsWritten
		log.Info().
			Str("asset", rep.AssetID).
			Str("tf", tf.TF).
			Str("action", tf.ActionName).
			Int("snapshots", tf.SnapshotsWritten).
			Bool("carry_forward", tf.CarryForward).
			Msg("timeframe refreshed")
		if r.met != nil {
			r.met.TriageActions.WithLabelValues(tf.ActionName).Inc()
			r.met.SnapshotsWritten.Add(float64(tf.SnapshotsWritten))
			if tf.CarryForward {
				r.met.CarryForwards.Inc()
			}
		}
	}
	if r.met != nil {
		r.met.RepairsTotal.WithLabelValues(rep.AssetID).Add(float64(rep.Repairs))
		r.met.RejectsTotal.WithLabelValues(rep.AssetID).Add(float64(rep.Rejects))
		r.met.AssetDuration.Observe(rep.Duration.Seconds())
	}
}

// writeArtifact persists the run summary as JSON in the artifacts dir.
func (r *Runner) writeArtifact(sum *Summary) error {
	if err := os.MkdirAll(r.cfg.ArtifactsDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(r.cfg.ArtifactsDir, fmt.Sprintf("run_%s.json", sum.RunID))
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
