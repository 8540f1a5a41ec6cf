package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteProvider looks up the last traded price of each ticker. Tickers that
// fail or have no usable price are left out of the result.
type QuoteProvider interface {
	Quotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)
}
