package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

// HistoryFilter narrows a history listing. Empty fields match everything.
type HistoryFilter struct {
	Ticker     string        // case-insensitive substring
	Status     domain.Status // exact match
	DatePrefix string        // prefix of the event date in YYYY-MM-DD form, e.g. "2024-03"
}

// FilterHistory returns the movements matching f, preserving order.
func FilterHistory(rows []Calculated, f HistoryFilter) []Calculated {
	ticker := strings.ToUpper(strings.TrimSpace(f.Ticker))
	prefix := strings.TrimSpace(f.DatePrefix)
	out := make([]Calculated, 0, len(rows))
	for _, c := range rows {
		if ticker != "" && !strings.Contains(strings.ToUpper(c.Ticker), ticker) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if prefix != "" && !strings.HasPrefix(c.EventDate.UTC().Format(domain.DateLayout), prefix) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ChainHistory returns the movements of one chain in the order they
// happened: by event date, then id.
func ChainHistory(rows []Calculated, chainID string) []Calculated {
	var out []Calculated
	for _, c := range rows {
		if c.ChainID == chainID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].EventDate.Before(out[j].EventDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ChainNetPremium is the premium collected across a chain net of every
// commission and closing cost paid along the way.
func ChainNetPremium(rows []Calculated, chainID string) decimal.Decimal {
	net := decimal.Zero
	for _, c := range rows {
		if c.ChainID != chainID {
			continue
		}
		net = net.Add(c.Premium).Sub(c.Commission.Add(c.ClosingCost))
	}
	return net
}
