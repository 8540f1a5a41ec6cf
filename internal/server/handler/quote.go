package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/ledger"
	"github.com/alanyoungcy/optionsledger/internal/service"
)

// QuoteService looks up display prices.
type QuoteService interface {
	Quotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)
}

// CurrentLister lists the current movements.
type CurrentLister interface {
	Current(ctx context.Context) ([]ledger.Calculated, error)
}

// QuoteHandler serves last prices for the dashboard. Prices are never
// written to the ledger.
type QuoteHandler struct {
	quotes  QuoteService
	current CurrentLister
	logger  *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(q QuoteService, current CurrentLister, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: q, current: current, logger: logHandler(logger, "quote")}
}

// GetQuotes returns prices for the requested tickers, or for every ticker
// with a current position when none are given.
// GET /api/quotes?tickers=AAPL,MSFT
func (h *QuoteHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	tickers := splitList(r.URL.Query().Get("tickers"))
	if len(tickers) == 0 {
		rows, err := h.current.Current(r.Context())
		if err != nil {
			writeServiceError(w, r, h.logger, "quotes", err)
			return
		}
		tickers = service.Tickers(rows)
	}

	quotes, err := h.quotes.Quotes(r.Context(), tickers)
	if err != nil {
		writeServiceError(w, r, h.logger, "quotes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}
