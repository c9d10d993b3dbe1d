package main

import (
	"fmt"

	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolkov/sharedptr/internal/sharedptr/stress"
)

// newStressCommand implements 'sharedptr stress'.
//
// Flags override values from --config, which override the defaults.
func newStressCommand(flags *globalFlags) *cobra.Command {
	var configPath string
	cfg := stress.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Share one allocation between many goroutines and verify exactly-once destruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			effective := cfg
			if configPath != "" {
				loaded, err := stress.LoadConfig(configPath)
				if err != nil {
					return err
				}
				effective = overlay(cmd, loaded, cfg)
			}

			logger, err := newLogger(flags)
			if err != nil {
				return errors.Annotate(err, "init logger")
			}
			defer func() { _ = logger.Sync() }()

			report, err := stress.Run(cmd.Context(), effective, logger)
			if report != nil {
				printReport(cmd, report)
			}
			if err != nil {
				logger.Error("stress run failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "TOML workload file")
	cmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "goroutines sharing the allocation")
	cmd.Flags().IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "clone/release cycles per goroutine")
	cmd.Flags().BoolVar(&cfg.Casts, "casts", cfg.Casts, "derive handles through static and dynamic casts")
	cmd.Flags().IntVar(&cfg.HoldEvery, "hold-every", cfg.HoldEvery, "keep one clone alive across this many cycles (0 disables)")
	cmd.Flags().BoolVar(&cfg.OriginTracking, "origin-tracking", cfg.OriginTracking, "record the allocation's origin stack")
	return cmd
}

// overlay applies the flags the user set explicitly on top of a loaded config.
func overlay(cmd *cobra.Command, loaded, fromFlags stress.Config) stress.Config {
	set := cmd.Flags().Changed
	if set("workers") {
		loaded.Workers = fromFlags.Workers
	}
	if set("iterations") {
		loaded.Iterations = fromFlags.Iterations
	}
	if set("casts") {
		loaded.Casts = fromFlags.Casts
	}
	if set("hold-every") {
		loaded.HoldEvery = fromFlags.HoldEvery
	}
	if set("origin-tracking") {
		loaded.OriginTracking = fromFlags.OriginTracking
	}
	return loaded
}

func printReport(cmd *cobra.Command, r *stress.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "workers:     %d\n", r.Workers)
	fmt.Fprintf(out, "iterations:  %d\n", r.Iterations)
	fmt.Fprintf(out, "handles:     %d\n", r.Handles)
	fmt.Fprintf(out, "peak refs:   %d\n", r.PeakRefs)
	fmt.Fprintf(out, "final refs:  %d\n", r.FinalRefs)
	fmt.Fprintf(out, "destroyed:   %d\n", r.Destroyed)
	if r.OriginStacks > 0 {
		fmt.Fprintf(out, "origins:     %d\n", r.OriginStacks)
	}
	fmt.Fprintf(out, "elapsed:     %s\n", r.Elapsed)
}
