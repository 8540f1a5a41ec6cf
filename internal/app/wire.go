package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/optionsledger/internal/blob/s3"
	"github.com/alanyoungcy/optionsledger/internal/cache/memory"
	"github.com/alanyoungcy/optionsledger/internal/cache/redis"
	"github.com/alanyoungcy/optionsledger/internal/config"
	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/notify"
	"github.com/alanyoungcy/optionsledger/internal/quote/finnhub"
	"github.com/alanyoungcy/optionsledger/internal/server/handler"
	"github.com/alanyoungcy/optionsledger/internal/service"
	"github.com/alanyoungcy/optionsledger/internal/store/postgres"
	"github.com/alanyoungcy/optionsledger/internal/store/sqlite"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Optional pieces are nil when their backend is disabled.
type Dependencies struct {
	// Store
	Store domain.MovementStore
	Audit domain.AuditStore

	// Caches
	QuoteCache  domain.QuoteCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	EventBus    domain.EventBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	Quotes   domain.QuoteProvider
	Notifier service.Notifier

	// Health probes by dependency name.
	Probes map[string]handler.Pinger
}

// Services are the application services built on top of Dependencies.
type Services struct {
	Ledger      *service.LedgerService
	Quotes      *service.QuoteService
	Snapshotter *service.Snapshotter // nil without S3
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Probes: make(map[string]handler.Pinger)}

	// --- Record store ---
	switch strings.ToLower(cfg.Store.Driver) {
	case "postgres":
		pgClient, err := openPostgres(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			applied, err := pgClient.RunMigrations(ctx)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
			if len(applied) > 0 {
				logger.InfoContext(ctx, "applied migrations", slog.Any("files", applied))
			}
		}

		pool := pgClient.Pool()
		deps.Store = postgres.NewMovementStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Probes["postgres"] = pgClient

	case "sqlite":
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })

		deps.Store = db
		deps.Audit = sqlite.NewAuditStore(db)
		deps.Probes["sqlite"] = db

	default:
		return nil, nil, fmt.Errorf("wire: unknown store driver %q", cfg.Store.Driver)
	}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteCache = redis.NewQuoteCache(redisClient, cfg.Quotes.CacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient)
		deps.Probes["redis"] = redisClient
	} else {
		deps.EventBus = memory.NewEventBus()
	}

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		snapshots := s3blob.NewStore(s3Client, int64(cfg.S3.PartSizeMB)<<20)
		deps.BlobWriter = snapshots
		deps.BlobReader = snapshots
		deps.Probes["s3"] = s3Client
	}

	// --- Quotes ---
	deps.Quotes = finnhub.NewClient(cfg.Quotes.BaseURL, cfg.Quotes.FinnhubToken, cfg.Quotes.Concurrency, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	// Left as a nil interface when nobody listens.
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

// NewServices builds the application services over deps.
func NewServices(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *Services {
	svc := &Services{
		Ledger: service.NewLedgerService(deps.Store, deps.Audit, deps.EventBus, deps.Notifier, logger),
		Quotes: service.NewQuoteService(deps.Quotes, deps.QuoteCache, logger),
	}
	if deps.BlobWriter != nil && deps.BlobReader != nil {
		svc.Snapshotter = service.NewSnapshotter(
			svc.Ledger, deps.BlobWriter, deps.BlobReader, deps.Audit, cfg.Snapshot.Prefix, logger,
		)
	}
	return svc
}

// Migrate brings the configured store's schema up to date and returns what
// was applied. SQLite migrates itself on open.
func Migrate(ctx context.Context, cfg *config.Config) ([]string, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "postgres":
		pgClient, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer pgClient.Close()
		applied, err := pgClient.RunMigrations(ctx)
		if err != nil {
			return applied, fmt.Errorf("migrate: %w", err)
		}
		return applied, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		_ = db.Close()
		return []string{"sqlite automigrate"}, nil
	default:
		return nil, fmt.Errorf("migrate: unknown store driver %q", cfg.Store.Driver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*postgres.Client, error) {
	c, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: postgres: %w", err)
	}
	return c, nil
}
