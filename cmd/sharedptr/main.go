// Package main implements the sharedptr CLI tool.
//
// The tool exercises the shared package outside of unit tests:
//
//	sharedptr stress --workers 16 --iterations 1000000   # hammer one allocation
//	sharedptr stress --config workload.toml --casts      # workload from a file
//	sharedptr version --require v0.1.0                   # version gate for scripts
//
// A stress run exits with status 1 when an ownership guarantee was violated.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kolkov/sharedptr/shared"
)

type globalFlags struct {
	logLevel  string
	logFormat string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "sharedptr",
		Short:         "sharedptr exercises thread-safe shared-ownership handles.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		newStressCommand(flags),
		newVersionCommand(),
	)
	return root
}

// newLogger builds the CLI logger and installs it as the library logger.
func newLogger(flags *globalFlags) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(flags.logLevel)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var cfg zap.Config
	switch flags.logFormat {
	case "json":
		cfg = zap.NewProductionConfig()
	case "text":
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	default:
		return nil, errors.Errorf("unknown log format %q", flags.logFormat)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Trace(err)
	}
	shared.SetLogger(logger)
	return logger, nil
}
