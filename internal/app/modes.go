package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/optionsledger/internal/pipeline"
	"github.com/alanyoungcy/optionsledger/internal/server"
	"github.com/alanyoungcy/optionsledger/internal/server/handler"
	"github.com/alanyoungcy/optionsledger/internal/server/ws"
	"github.com/alanyoungcy/optionsledger/internal/service"
)

// ServerMode serves the HTTP API and the WebSocket event stream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, svc *Services) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// SnapshotMode runs only the scheduled CSV snapshot exporter.
func (a *App) SnapshotMode(ctx context.Context, deps *Dependencies, svc *Services) error {
	a.logger.InfoContext(ctx, "starting snapshot mode")

	if svc.Snapshotter == nil {
		return errors.New("snapshot mode: s3 is not enabled")
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startSnapshotJob(ctx, g, deps, svc)
	return g.Wait()
}

// FullMode starts the HTTP server and, when enabled, the snapshot schedule.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, svc *Services) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc)
	}

	if a.cfg.Snapshot.Enabled {
		if svc.Snapshotter == nil {
			a.logger.WarnContext(ctx, "snapshot.enabled is set but s3 is not, snapshots disabled")
		} else {
			a.startSnapshotJob(ctx, g, deps, svc)
		}
	}

	return g.Wait()
}

// startSnapshotJob adds the cron-driven snapshot exporter to g. The job
// returns context.Canceled on shutdown, which is not an error here.
func (a *App) startSnapshotJob(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *Services) {
	job := pipeline.NewSnapshotJob(svc.Snapshotter, deps.LockManager, a.cfg.Snapshot.Retain, a.logger)
	g.Go(func() error {
		a.logger.InfoContext(ctx, "snapshot schedule started",
			slog.String("cron", a.cfg.Snapshot.Cron),
			slog.Int("retain", a.cfg.Snapshot.Retain),
		)
		if err := job.RunCron(ctx, a.cfg.Snapshot.Cron); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("snapshot job: %w", err)
		}
		return nil
	})
}

// startHTTPServer adds the HTTP server and the WebSocket hub to g. The server
// is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *Services) {
	hub := ws.NewHub(deps.EventBus, a.logger, ws.Config{
		Channel:   service.LedgerChannel,
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		if err := hub.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Probes, a.logger),
		Movements: handler.NewMovementHandler(svc.Ledger, a.logger),
		Summary:   handler.NewSummaryHandler(svc.Ledger, a.logger),
		CSV:       handler.NewCSVHandler(svc.Ledger, a.logger),
		Quotes:    handler.NewQuoteHandler(svc.Quotes, svc.Ledger, a.logger),
	}
	if deps.Audit != nil {
		handlers.Audit = handler.NewAuditHandler(deps.Audit, a.logger)
	}
	if svc.Snapshotter != nil {
		handlers.Snapshots = handler.NewSnapshotHandler(svc.Snapshotter, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
