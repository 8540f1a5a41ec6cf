// Package finnhub looks up last traded prices from the Finnhub quote API.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

// DefaultBaseURL is the public Finnhub REST root.
const DefaultBaseURL = "https://finnhub.io/api/v1"

// Client implements domain.QuoteProvider.
type Client struct {
	baseURL     string
	token       string
	concurrency int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a Client. An empty baseURL uses DefaultBaseURL and
// concurrency <= 0 means four requests in flight.
func NewClient(baseURL, token string, concurrency int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		concurrency: concurrency,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With(slog.String("component", "finnhub")),
	}
}

// apiQuote is the subset of the /quote response we read. Some proxies send
// "current" instead of "c".
type apiQuote struct {
	C       json.Number `json:"c"`
	Current json.Number `json:"current"`
}

func (q apiQuote) price() (decimal.Decimal, bool) {
	raw := q.C
	if raw == "" {
		raw = q.Current
	}
	p, err := decimal.NewFromString(raw.String())
	if err != nil || !p.IsPositive() {
		return decimal.Decimal{}, false
	}
	return p, true
}

// Quotes fetches every ticker in parallel. Tickers that fail or have no
// positive price are left out; a missing token yields an empty map.
func (c *Client) Quotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(tickers))
	if c.token == "" || len(tickers) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, t := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(t))
		if ticker == "" {
			continue
		}
		g.Go(func() error {
			price, err := c.quote(gctx, ticker)
			if err != nil {
				c.logger.DebugContext(gctx, "quote lookup failed",
					slog.String("ticker", ticker),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			out[ticker] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("finnhub: quotes: %w", err)
	}
	return out, nil
}

func (c *Client) quote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var q apiQuote
	if err := json.Unmarshal(body, &q); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode quote: %w", err)
	}
	price, ok := q.price()
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no usable price for %s", ticker)
	}
	return price, nil
}

var _ domain.QuoteProvider = (*Client)(nil)
