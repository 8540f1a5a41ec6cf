package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alanyoungcy/optionsledger/internal/app"
	"github.com/alanyoungcy/optionsledger/internal/config"
)

// parseLevel maps the configured log level onto slog, defaulting to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setup loads and validates the configuration and returns it with a JSON
// logger writing to w. Commands that print results log to stderr so their
// output stays clean.
func setup(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", *configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openApp is setup plus an App for one-shot commands. The caller must Close
// the App.
func openApp() (*app.App, *config.Config, error) {
	cfg, logger, err := setup(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return app.New(cfg, logger), cfg, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
}
