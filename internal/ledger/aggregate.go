package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Totals are portfolio-wide sums over the full history.
type Totals struct {
	Premium     decimal.Decimal `json:"premium"`
	Commission  decimal.Decimal `json:"commission"`
	ClosingCost decimal.Decimal `json:"closing_cost"`
	Net         decimal.Decimal `json:"net"`
	Collateral  decimal.Decimal `json:"collateral"`
	ROI         decimal.Decimal `json:"roi"`
}

// TickerStat aggregates every movement of one ticker.
type TickerStat struct {
	Ticker         string          `json:"ticker"`
	Premium        decimal.Decimal `json:"premium"`
	Costs          decimal.Decimal `json:"costs"`
	Net            decimal.Decimal `json:"net"`
	CurrentCapital decimal.Decimal `json:"current_capital"`
	MaxCapital     decimal.Decimal `json:"max_capital"`
	Shares         int64           `json:"shares"`
	Capital        decimal.Decimal `json:"capital"`
	ROI            decimal.Decimal `json:"roi"`
	BreakEven      decimal.Decimal `json:"break_even"`

	weightedBreakEven decimal.Decimal
}

// Summary is the result of Summarize.
type Summary struct {
	Totals     Totals          `json:"totals"`
	Tickers    []TickerStat    `json:"tickers"`
	GeneralROI decimal.Decimal `json:"general_roi"`
}

// Summarize rolls a full movement history into portfolio totals and a
// per-ticker ROI ranking. Collateral counts only current movements. A
// ticker's capital is its current collateral when it has any, else the
// largest single-movement collateral it ever had. General ROI is the plain
// mean of the per-ticker ROIs.
func Summarize(history []Calculated) Summary {
	var t Totals
	byTicker := make(map[string]*TickerStat)
	var order []string

	for _, c := range history {
		t.Premium = t.Premium.Add(c.Premium)
		t.Commission = t.Commission.Add(c.Commission)
		t.ClosingCost = t.ClosingCost.Add(c.ClosingCost)
		if c.IsCurrent {
			t.Collateral = t.Collateral.Add(c.Capital)
		}

		key := strings.ToUpper(strings.TrimSpace(c.Ticker))
		st, ok := byTicker[key]
		if !ok {
			st = &TickerStat{Ticker: key}
			byTicker[key] = st
			order = append(order, key)
		}
		base := c.Shares()
		st.Premium = st.Premium.Add(c.Premium)
		st.Costs = st.Costs.Add(c.Commission).Add(c.ClosingCost)
		st.Net = st.Net.Add(c.Net)
		if c.IsCurrent {
			st.CurrentCapital = st.CurrentCapital.Add(c.Capital)
		}
		if c.Capital.GreaterThan(st.MaxCapital) {
			st.MaxCapital = c.Capital
		}
		st.Shares += base
		st.weightedBreakEven = st.weightedBreakEven.Add(c.BreakEven.Mul(decimal.NewFromInt(base)))
	}

	t.Net = t.Premium.Sub(t.Commission).Sub(t.ClosingCost)
	t.ROI = ROI(t.Net, t.Collateral)

	stats := make([]TickerStat, 0, len(order))
	for _, key := range order {
		st := byTicker[key]
		st.Capital = st.MaxCapital
		if st.CurrentCapital.IsPositive() {
			st.Capital = st.CurrentCapital
		}
		st.ROI = ROI(st.Net, st.Capital)
		if st.Shares > 0 {
			st.BreakEven = st.weightedBreakEven.Div(decimal.NewFromInt(st.Shares))
		}
		stats = append(stats, *st)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if c := stats[i].ROI.Cmp(stats[j].ROI); c != 0 {
			return c > 0
		}
		return stats[i].Ticker < stats[j].Ticker
	})

	return Summary{Totals: t, Tickers: stats, GeneralROI: GeneralROI(stats)}
}

// GeneralROI is the arithmetic mean of the per-ticker ROIs.
func GeneralROI(stats []TickerStat) decimal.Decimal {
	if len(stats) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, s := range stats {
		sum = sum.Add(s.ROI)
	}
	return sum.Div(decimal.NewFromInt(int64(len(stats))))
}

// FilterTickers keeps the stats whose ticker contains query, ignoring case.
func FilterTickers(stats []TickerStat, query string) []TickerStat {
	term := strings.ToUpper(strings.TrimSpace(query))
	if term == "" {
		return stats
	}
	out := make([]TickerStat, 0, len(stats))
	for _, s := range stats {
		if strings.Contains(s.Ticker, term) {
			out = append(out, s)
		}
	}
	return out
}

// Page returns the 1-based page of items and the total page count (at least
// 1). Out-of-range pages yield an empty slice.
func Page[T any](items []T, page, size int) ([]T, int) {
	if size <= 0 {
		size = len(items)
		if size == 0 {
			size = 1
		}
	}
	pages := (len(items) + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}, pages
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], pages
}
