package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"github.com/alanyoungcy/optionsledger/internal/app"
)

type serveCmd struct {
	mode string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API and the snapshot schedule" }
func (*serveCmd) Usage() string {
	return `optionsledger [-config <file>] serve [-mode server|snapshot|full]

  Runs until interrupted. The mode defaults to the configured one.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.mode, "mode", "", "override the configured mode")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := setup(os.Stdout)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if c.mode != "" {
		cfg.Mode = c.mode
		if err := cfg.Validate(); err != nil {
			fail(err)
			return subcommands.ExitUsageError
		}
	}

	logger.Info("options ledger starting",
		slog.String("config", *configPath),
		slog.Any("settings", *cfg),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fail(err)
			return subcommands.ExitFailure
		}
	}

	logger.Info("options ledger stopped")
	return subcommands.ExitSuccess
}
