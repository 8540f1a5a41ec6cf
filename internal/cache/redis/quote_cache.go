package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

// DefaultQuoteTTL bounds how stale a cached quote may be.
const DefaultQuoteTTL = 5 * time.Minute

// QuoteCache implements domain.QuoteCache. Each ticker lives in a hash at
// "{prefix}:quote:{TICKER}" with fields "price" and "ts" (Unix nanoseconds) and
// expires after the configured TTL.
type QuoteCache struct {
	client *Client
	ttl    time.Duration
}

// NewQuoteCache creates a QuoteCache; ttl <= 0 uses DefaultQuoteTTL.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &QuoteCache{client: c, ttl: ttl}
}

func (qc *QuoteCache) key(ticker string) string {
	return qc.client.key("quote", strings.ToUpper(ticker))
}

// SetQuote stores the latest price for ticker.
func (qc *QuoteCache) SetQuote(ctx context.Context, ticker string, price decimal.Decimal, ts time.Time) error {
	key := qc.key(ticker)
	pipe := qc.client.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, qc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", ticker, err)
	}
	return nil
}

// GetQuotes returns the cached prices for tickers in one round trip.
// Tickers with no live entry are omitted.
func (qc *QuoteCache) GetQuotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	if len(tickers) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	pipe := qc.client.rdb.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(tickers))
	for _, t := range tickers {
		cmds[strings.ToUpper(t)] = pipe.HGet(ctx, qc.key(t), "price")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get quotes pipeline: %w", err)
	}

	result := make(map[string]decimal.Decimal, len(cmds))
	for ticker, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		result[ticker] = price
	}
	return result, nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
