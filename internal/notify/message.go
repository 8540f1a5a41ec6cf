package notify

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

// Currency is the currency ledger amounts are displayed in.
var Currency = money.USD

// FormatMoney renders d in the display currency, rounded to its minor unit.
func FormatMoney(d decimal.Decimal) string {
	cur := money.GetCurrency(Currency)
	if cur == nil {
		return d.StringFixed(2)
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), Currency).Display()
}

var titles = map[string]string{
	"position_opened":     "Position opened",
	"position_updated":    "Position updated",
	"position_rolled":     "Position rolled",
	"position_closed":     "Position closed",
	"position_assigned":   "Position assigned",
	"assignment_reverted": "Assignment reverted",
	"close_reverted":      "Close reverted",
}

// MovementMessage builds the notification title and body for a ledger event.
func MovementMessage(event string, c ledger.Calculated) (title, message string) {
	title, ok := titles[event]
	if !ok {
		title = strings.ReplaceAll(event, "_", " ")
	}
	title = fmt.Sprintf("%s: %s %s", title, c.Ticker, c.Strategy)

	var b strings.Builder
	fmt.Fprintf(&b, "%d x %s strike", c.Contracts, FormatMoney(c.Strike))
	if c.ExpirationDate != nil {
		fmt.Fprintf(&b, " exp %s", ledger.DateValue(*c.ExpirationDate))
	}
	fmt.Fprintf(&b, "\npremium %s, net %s, roi %s%%",
		FormatMoney(c.Premium), FormatMoney(c.Net), c.ROI.Shift(2).StringFixed(2))
	if !c.AssignmentPL.IsZero() {
		fmt.Fprintf(&b, "\nassignment p/l %s", FormatMoney(c.AssignmentPL))
	}
	return title, b.String()
}
