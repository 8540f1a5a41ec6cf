package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func price(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func TestCalculateOpenCashSecuredPut(t *testing.T) {
	m := domain.Movement{
		Strategy:   domain.StrategyCSP,
		Contracts:  1,
		Strike:     dec("100"),
		Premium:    dec("200"),
		Commission: dec("1"),
		Status:     domain.StatusOpen,
	}
	c := Calculate(m)
	if !c.Net.Equal(dec("199")) {
		t.Fatalf("net=%s want=199", c.Net)
	}
	if !c.Capital.Equal(dec("10000")) {
		t.Fatalf("capital=%s want=10000", c.Capital)
	}
	if !c.ROI.Equal(dec("0.0199")) {
		t.Fatalf("roi=%s want=0.0199", c.ROI)
	}
	if !c.BreakEven.Equal(dec("98.01")) {
		t.Fatalf("break_even=%s want=98.01", c.BreakEven)
	}
	if !c.AssignmentPL.IsZero() {
		t.Fatalf("assignment_pl=%s want=0", c.AssignmentPL)
	}
}

func TestAssignmentPL(t *testing.T) {
	cases := []struct {
		name     string
		strategy domain.Strategy
		status   domain.Status
		current  decimal.NullDecimal
		want     string
	}{
		{"csp assigned below strike", domain.StrategyCSP, domain.StatusAssigned, price("95"), "-500"},
		{"csp lowercase", "csp", domain.StatusAssigned, price("95"), "-500"},
		{"cc called away above strike", domain.StrategyCC, domain.StatusAssigned, price("110"), "-1000"},
		{"unknown strategy uses call formula", "PMCC", domain.StatusAssigned, price("90"), "1000"},
		{"no current price", domain.StrategyCSP, domain.StatusAssigned, decimal.NullDecimal{}, "0"},
		{"not assigned", domain.StrategyCSP, domain.StatusClosed, price("95"), "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := domain.Movement{
				Strategy:     tc.strategy,
				Contracts:    1,
				Strike:       dec("100"),
				CurrentPrice: tc.current,
				Status:       tc.status,
			}
			if got := AssignmentPL(m); !got.Equal(dec(tc.want)) {
				t.Fatalf("assignment_pl=%s want=%s", got, tc.want)
			}
		})
	}
}

func TestNetAssignedIncludesAssignmentPL(t *testing.T) {
	m := domain.Movement{
		Strategy:     domain.StrategyCSP,
		Contracts:    2,
		Strike:       dec("50"),
		Premium:      dec("120"),
		Commission:   dec("2"),
		ClosingCost:  dec("600"),
		CurrentPrice: price("47"),
		Status:       domain.StatusAssigned,
	}
	// 120 - (2 + 600) + (47 - 50) * 200
	if got := Net(m); !got.Equal(dec("-1082")) {
		t.Fatalf("net=%s want=-1082", got)
	}
}

func TestNetClosedCoveredCallAddsShareMove(t *testing.T) {
	m := domain.Movement{
		Strategy:     domain.StrategyCC,
		Contracts:    1,
		Strike:       dec("60"),
		OpeningPrice: price("50"),
		CurrentPrice: price("55"),
		Premium:      dec("100"),
		Commission:   dec("1"),
		ClosingCost:  dec("10"),
		Status:       domain.StatusClosed,
	}
	if got := ExtraClose(m); !got.Equal(dec("500")) {
		t.Fatalf("extra_close=%s want=500", got)
	}
	if got := Net(m); !got.Equal(dec("589")) {
		t.Fatalf("net=%s want=589", got)
	}

	m.OpeningPrice = decimal.NullDecimal{}
	if got := Net(m); !got.Equal(dec("89")) {
		t.Fatalf("net without opening price=%s want=89", got)
	}

	m.OpeningPrice = price("50")
	m.Strategy = domain.StrategyCSP
	if got := ExtraClose(m); !got.IsZero() {
		t.Fatalf("closed csp extra_close=%s want=0", got)
	}
}

func TestBreakEvenCoveredCallUsesCostBasis(t *testing.T) {
	m := domain.Movement{
		Strategy:     domain.StrategyCC,
		Contracts:    1,
		Strike:       dec("55"),
		OpeningPrice: price("50"),
		Premium:      dec("160"),
		Commission:   dec("10"),
		Status:       domain.StatusOpen,
	}
	// cost basis 50 minus 1.50 net premium per share, not strike plus premium.
	if got := BreakEven(m); !got.Equal(dec("48.5")) {
		t.Fatalf("break_even=%s want=48.5", got)
	}

	m.OpeningPrice = decimal.NullDecimal{}
	m.CurrentPrice = price("52")
	if got := BreakEven(m); !got.Equal(dec("50.5")) {
		t.Fatalf("break_even from current price=%s want=50.5", got)
	}

	m.CurrentPrice = decimal.NullDecimal{}
	if got := BreakEven(m); !got.Equal(dec("53.5")) {
		t.Fatalf("break_even from strike=%s want=53.5", got)
	}
}

func TestCalculateZeroContracts(t *testing.T) {
	m := domain.Movement{
		Strategy: domain.StrategyCSP,
		Strike:   dec("20"),
		Premium:  dec("3"),
	}
	c := Calculate(m)
	if !c.Capital.IsZero() || !c.ROI.IsZero() {
		t.Fatalf("capital=%s roi=%s want both 0", c.Capital, c.ROI)
	}
	if !c.BreakEven.Equal(dec("17")) {
		t.Fatalf("break_even=%s want=17", c.BreakEven)
	}
}
