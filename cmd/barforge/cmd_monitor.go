package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/quantfabric/barforge/internal/monitor"
	"github.com/quantfabric/barforge/internal/persistence/postgres"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Start the monitoring HTTP server",
		Long:  "Serves /health (backing-store connectivity) and /metrics (Prometheus) for operational visibility.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := postgres.Open(cmd.Context(), cfg.Database.DSN, cfg.Database.MaxOpenConns)
			if err != nil {
				return err
			}
			defer db.Close()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			srv := monitor.NewServer(cfg.Monitor.ListenAddr, registry, db)
			return srv.ListenAndServe()
		},
	}
	return cmd
}
