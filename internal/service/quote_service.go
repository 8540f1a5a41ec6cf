package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

// QuoteService looks up display prices, serving from the cache when it can
// and asking the provider only for the tickers it is missing. Prices are
// never written to the ledger.
type QuoteService struct {
	provider domain.QuoteProvider
	cache    domain.QuoteCache
	logger   *slog.Logger
}

// NewQuoteService creates a QuoteService. cache may be nil.
func NewQuoteService(provider domain.QuoteProvider, cache domain.QuoteCache, logger *slog.Logger) *QuoteService {
	return &QuoteService{
		provider: provider,
		cache:    cache,
		logger:   logger.With(slog.String("component", "quote_service")),
	}
}

// Quotes returns the last price per ticker, keyed by uppercased ticker.
// Tickers without a price are absent from the result.
func (s *QuoteService) Quotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	wanted := uniqueTickers(tickers)
	out := make(map[string]decimal.Decimal, len(wanted))
	if len(wanted) == 0 {
		return out, nil
	}

	if s.cache != nil {
		cached, err := s.cache.GetQuotes(ctx, wanted)
		if err != nil {
			s.logger.WarnContext(ctx, "quote cache read failed", slog.String("error", err.Error()))
		}
		for t, p := range cached {
			out[t] = p
		}
	}

	var missing []string
	for _, t := range wanted {
		if _, ok := out[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := s.provider.Quotes(ctx, missing)
	if err != nil {
		return out, err
	}
	now := time.Now().UTC()
	for t, p := range fetched {
		out[t] = p
		if s.cache == nil {
			continue
		}
		if err := s.cache.SetQuote(ctx, t, p, now); err != nil {
			s.logger.WarnContext(ctx, "quote cache write failed",
				slog.String("ticker", t),
				slog.String("error", err.Error()),
			)
		}
	}
	return out, nil
}

// Tickers lists the tickers of the given movements, deduplicated.
func Tickers(rows []ledger.Calculated) []string {
	tickers := make([]string, 0, len(rows))
	for _, m := range rows {
		tickers = append(tickers, m.Ticker)
	}
	return uniqueTickers(tickers)
}

func uniqueTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
