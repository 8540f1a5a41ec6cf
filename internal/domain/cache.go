package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteCache keeps the last known price per ticker for a limited time.
type QuoteCache interface {
	SetQuote(ctx context.Context, ticker string, price decimal.Decimal, ts time.Time) error
	GetQuotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventBus fans ledger events out to subscribers.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager hands out short-lived distributed locks.
type LockManager interface {
	// Acquire returns ErrLockHeld when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
