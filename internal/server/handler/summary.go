package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

// Summarizer produces the portfolio summary.
type Summarizer interface {
	Summary(ctx context.Context) (ledger.Summary, error)
}

// SummaryHandler serves the portfolio totals and the per-ticker ROI ranking.
type SummaryHandler struct {
	ledger Summarizer
	logger *slog.Logger
}

// NewSummaryHandler creates a SummaryHandler.
func NewSummaryHandler(l Summarizer, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{ledger: l, logger: logHandler(logger, "summary")}
}

type summaryResponse struct {
	Totals      ledger.Totals       `json:"totals"`
	GeneralROI  decimal.Decimal     `json:"general_roi"`
	Tickers     []ledger.TickerStat `json:"tickers"`
	TickerCount int                 `json:"ticker_count"`
	Page        int                 `json:"page"`
	Pages       int                 `json:"pages"`
}

// GetSummary returns totals over the whole history and one page of the
// ticker ranking, optionally narrowed by a ticker substring.
// GET /api/summary?ticker=&page=&size=
func (h *SummaryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.ledger.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "summary", err)
		return
	}
	q := r.URL.Query()
	stats := ledger.FilterTickers(s.Tickers, q.Get("ticker"))
	page := queryInt(q.Get("page"), 1, 1)
	size := min(queryInt(q.Get("size"), 5, 1), 100)
	items, pages := ledger.Page(stats, page, size)
	if items == nil {
		items = []ledger.TickerStat{}
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		Totals:      s.Totals,
		GeneralROI:  s.GeneralROI,
		Tickers:     items,
		TickerCount: len(stats),
		Page:        page,
		Pages:       pages,
	})
}
