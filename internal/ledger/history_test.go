package ledger

import (
	"testing"
	"time"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

func chainFixture() []Calculated {
	day := func(d int) time.Time { return time.Date(2024, 4, d, 10, 0, 0, 0, time.UTC) }
	open := csp("TSLA", "170", "350", false)
	open.ID, open.ChainID, open.EventDate, open.Status = 1, "a", day(1), domain.StatusRolled
	open.Commission = dec("1")
	open.ClosingCost = dec("120")

	rolled := csp("TSLA", "165", "280", true)
	rolled.ID, rolled.ChainID, rolled.EventDate = 3, "a", day(12)
	rolled.Commission = dec("1")

	other := csp("NVDA", "800", "900", true)
	other.ID, other.ChainID, other.EventDate = 2, "b", day(5)

	// newest first, the order history listings come back in
	return CalculateAll([]domain.Movement{rolled, other, open})
}

func TestChainHistoryOrdersOldestFirst(t *testing.T) {
	got := ChainHistory(chainFixture(), "a")
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("chain=%v want ids [1 3]", got)
	}
	if got := ChainHistory(chainFixture(), "missing"); len(got) != 0 {
		t.Fatalf("missing chain=%v want empty", got)
	}
}

func TestChainNetPremium(t *testing.T) {
	// 350 + 280 - (1 + 120) - 1
	if got := ChainNetPremium(chainFixture(), "a"); !got.Equal(dec("508")) {
		t.Fatalf("chain net=%s want=508", got)
	}
}

func TestFilterHistory(t *testing.T) {
	rows := chainFixture()
	cases := []struct {
		name string
		f    HistoryFilter
		want int
	}{
		{"no filter", HistoryFilter{}, 3},
		{"ticker substring", HistoryFilter{Ticker: "tsl"}, 2},
		{"status", HistoryFilter{Status: domain.StatusRolled}, 1},
		{"month prefix", HistoryFilter{DatePrefix: "2024-04"}, 3},
		{"day prefix", HistoryFilter{DatePrefix: "2024-04-05"}, 1},
		{"combined", HistoryFilter{Ticker: "TSLA", Status: domain.StatusOpen}, 1},
	}
	for _, tc := range cases {
		if got := FilterHistory(rows, tc.f); len(got) != tc.want {
			t.Fatalf("%s: got=%d want=%d", tc.name, len(got), tc.want)
		}
	}
}
