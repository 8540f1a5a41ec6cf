// Package app assembles the ledger from configuration and runs it in one of
// its modes: server (HTTP API and WebSocket feed), snapshot (one CSV backup
// to S3) or full (server plus scheduled snapshots).
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/optionsledger/internal/config"
)

type modeFunc func(a *App, ctx context.Context, deps *Dependencies, svc *Services) error

var modes = map[string]modeFunc{
	"server":   (*App).ServerMode,
	"snapshot": (*App).SnapshotMode,
	"full":     (*App).FullMode,
}

// App holds the configuration and whatever Wire opened, so Close can release
// it.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies and blocks in the configured mode until ctx ends or
// the mode fails. Call Close afterwards.
func (a *App) Run(ctx context.Context) error {
	run, ok := modes[strings.ToLower(a.cfg.Mode)]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
	a.logger.InfoContext(ctx, "ledger starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("store", a.cfg.Store.Driver),
	)

	deps, svc, err := a.wire(ctx)
	if err != nil {
		return err
	}
	return run(a, ctx, deps, svc)
}

// Services wires dependencies for one-shot commands such as import, export
// and summary.
func (a *App) Services(ctx context.Context) (*Services, error) {
	_, svc, err := a.wire(ctx)
	return svc, err
}

func (a *App) wire(ctx context.Context) (*Dependencies, *Services, error) {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	return deps, NewServices(a.cfg, deps, a.logger), nil
}

// Close releases resources newest first. Later calls do nothing.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("ledger stopping")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
