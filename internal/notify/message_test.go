package notify

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"1234.5":  "$1,234.50",
		"-500":    "-$500.00",
		"0.005":   "$0.01",
		"0":       "$0.00",
		"98.0149": "$98.01",
	}
	for in, want := range cases {
		if got := FormatMoney(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatMoney(%s)=%q want=%q", in, got, want)
		}
	}
}

func TestMovementMessage(t *testing.T) {
	c := ledger.Calculate(domain.Movement{
		Ticker:       "AAPL",
		Strategy:     domain.StrategyCSP,
		Contracts:    1,
		Strike:       decimal.RequireFromString("100"),
		Premium:      decimal.RequireFromString("200"),
		Commission:   decimal.RequireFromString("1"),
		Status:       domain.StatusAssigned,
		CurrentPrice: decimal.NewNullDecimal(decimal.RequireFromString("95")),
	})
	title, msg := MovementMessage("position_assigned", c)
	if title != "Position assigned: AAPL CSP" {
		t.Fatalf("title=%q", title)
	}
	for _, want := range []string{"1 x $100.00 strike", "premium $200.00", "assignment p/l -$500.00"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
}
