package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joeycumines/go-fiberevent/internal/sim"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		configFile  string
		cores       int
		duration    time.Duration
		metricsAddr string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run a simulation described by a YAML config file.

Flags override the matching config fields. Logs are written to stderr as
JSON, and per-core metrics are printed to stdout once the run stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sim.DefaultConfig()
			if configFile != "" {
				var err error
				if cfg, err = sim.LoadConfig(configFile); err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("cores") {
				cfg.Cores = cores
			}
			if flags.Changed("duration") {
				cfg.Duration = duration
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			level, err := sim.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			report, err := sim.Run(cmd.Context(), cfg, sim.NewLogger(os.Stderr, level))
			if report != nil {
				if _, err := report.WriteTo(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return err
		},
	}

	defaults := sim.DefaultConfig()
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().IntVar(&cores, "cores", defaults.Cores, "Number of cores")
	cmd.Flags().DurationVar(&duration, "duration", defaults.Duration, "Run duration, zero to run until idle")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&logLevel, "log-level", defaults.LogLevel, "Log level (emerg, alert, crit, err, warning, notice, info, debug, trace, disabled)")

	return cmd
}
