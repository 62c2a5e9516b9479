package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	appName = "barforge"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Deterministic multi-timeframe OHLCV bar construction and refresh",
		Version: version,
		Long: `barforge ingests per-day price observations and maintains multi-timeframe
OHLCV bars incrementally: canonicalization, deterministic bar construction,
and a per (asset, timeframe) triage state machine deciding between full
build, seed, rebuild, append, and no-op on every run.`,
	}

	addGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newTimeframesCmd())
	rootCmd.AddCommand(newMonitorCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to YAML config file")
	fs.String("log-level", "", "Log level override (trace|debug|info|warn|error)")
}

func setLogLevel(level string) {
	if level == "" {
		return
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, keeping default")
		return
	}
	zerolog.SetGlobalLevel(parsed)
}
