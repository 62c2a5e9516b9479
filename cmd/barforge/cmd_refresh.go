package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfabric/barforge/internal/config"
	barlog "github.com/quantfabric/barforge/internal/log"
	"github.com/quantfabric/barforge/internal/metrics"
	"github.com/quantfabric/barforge/internal/persistence"
	"github.com/quantfabric/barforge/internal/persistence/postgres"
	"github.com/quantfabric/barforge/internal/persistence/rediscache"
	"github.com/quantfabric/barforge/internal/runner"
	"github.com/quantfabric/barforge/internal/timeframe"
)

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run the incremental bar refresh across assets and timeframes",
		Long: `Triages every (asset, timeframe) pair against stored watermarks and
executes the resulting action: full build, seed, rebuild, forward append,
or no-op. Work is partitioned by asset; one worker owns all timeframes
for its asset.`,
		RunE: runRefresh,
	}

	cmd.Flags().StringSlice("assets", nil, "Asset ids to refresh (default: all in source)")
	cmd.Flags().StringSlice("tfs", nil, "Timeframe labels to refresh (default: full registry)")
	cmd.Flags().Int("workers", 0, "Worker pool size override")
	cmd.Flags().Bool("dry-run", false, "Compute everything, write nothing")
	cmd.Flags().String("progress", "auto", "Progress output mode (auto|plain|json)")
	return cmd
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	assets, _ := cmd.Flags().GetStringSlice("assets")
	tfs, _ := cmd.Flags().GetStringSlice("tfs")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	progress, _ := cmd.Flags().GetString("progress")
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Refresh.Workers = workers
	}
	if len(assets) == 0 {
		assets = cfg.Refresh.Assets
	}
	if len(tfs) == 0 {
		tfs = cfg.Refresh.Timeframes
	}

	ctx := cmd.Context()
	db, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()

	timeout := cfg.Database.QueryTimeout.Std()
	repo := persistence.Repository{
		Source:    postgres.NewObservationSource(db, timeout),
		Snapshots: postgres.NewSnapshotRepo(db, timeout),
		States:    postgres.NewStateRepo(db, timeout),
		Rejects:   postgres.NewRejectRepo(db, timeout),
	}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		repo.States = rediscache.NewStateCache(repo.States, rdb, cfg.Redis.TTL.Std())
		log.Info().Str("addr", cfg.Redis.Addr).Msg("refresh-state cache enabled")
	}

	met := metrics.New(prometheus.DefaultRegisterer)
	reg := timeframe.DefaultRegistry()

	r := runner.New(repo, reg, cfg.Refresh, met, dryRun, barlog.Mode(progress))
	sum, err := r.Run(ctx, assets, tfs)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d asset(s) failed; see log for details", sum.Failed)
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if path == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(path); err != nil {
		return nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.Log.Level
	}
	setLogLevel(level)
	return cfg, nil
}
