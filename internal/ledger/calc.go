package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

var sharesPerContract = decimal.NewFromInt(domain.SharesPerContract)

// Calculated is a movement annotated with its derived financial figures.
type Calculated struct {
	domain.Movement
	Net          decimal.Decimal `json:"net"`
	Capital      decimal.Decimal `json:"capital"`
	ROI          decimal.Decimal `json:"roi"`
	BreakEven    decimal.Decimal `json:"break_even"`
	AssignmentPL decimal.Decimal `json:"assignment_pl"`
}

// Calculate derives net result, capital, ROI, break-even and assignment P/L.
func Calculate(m domain.Movement) Calculated {
	net := Net(m)
	capital := Capital(m)
	return Calculated{
		Movement:     m,
		Net:          net,
		Capital:      capital,
		ROI:          ROI(net, capital),
		BreakEven:    BreakEven(m),
		AssignmentPL: AssignmentPL(m),
	}
}

// CalculateAll applies Calculate to every movement.
func CalculateAll(ms []domain.Movement) []Calculated {
	out := make([]Calculated, 0, len(ms))
	for _, m := range ms {
		out = append(out, Calculate(m))
	}
	return out
}

func shares(m domain.Movement) decimal.Decimal {
	return decimal.NewFromInt(int64(m.Contracts)).Mul(sharesPerContract)
}

// AssignmentPL is the gain or loss on the shares exchanged at assignment.
// It is zero unless the movement is assigned and has a current price. Any
// strategy other than CSP is treated like a covered call.
func AssignmentPL(m domain.Movement) decimal.Decimal {
	if m.Status != domain.StatusAssigned || !m.CurrentPrice.Valid {
		return decimal.Zero
	}
	price := m.CurrentPrice.Decimal
	if m.Strategy.Is(domain.StrategyCSP) {
		return price.Sub(m.Strike).Mul(shares(m))
	}
	return m.Strike.Sub(price).Mul(shares(m))
}

// ExtraClose is the result booked on top of the option premium when the
// movement ends: assignment P/L, or the share move of a closed covered call.
func ExtraClose(m domain.Movement) decimal.Decimal {
	switch {
	case m.Status == domain.StatusAssigned:
		return AssignmentPL(m)
	case m.Status == domain.StatusClosed && m.Strategy.Is(domain.StrategyCC) &&
		m.OpeningPrice.Valid && m.CurrentPrice.Valid:
		return m.CurrentPrice.Decimal.Sub(m.OpeningPrice.Decimal).Mul(shares(m))
	default:
		return decimal.Zero
	}
}

// Net is premium minus commission and closing cost, plus ExtraClose.
func Net(m domain.Movement) decimal.Decimal {
	return m.Premium.Sub(m.Commission.Add(m.ClosingCost)).Add(ExtraClose(m))
}

// Capital is the collateral basis: contracts x 100 x strike.
func Capital(m domain.Movement) decimal.Decimal {
	return shares(m).Mul(m.Strike)
}

// ROI divides net by capital, returning zero when capital is not positive.
func ROI(net, capital decimal.Decimal) decimal.Decimal {
	if !capital.IsPositive() {
		return decimal.Zero
	}
	return net.Div(capital)
}

// NetPremiumPerShare is premium net of commission and closing cost, spread
// over the shares covered (or over 1 when there are no contracts).
func NetPremiumPerShare(m domain.Movement) decimal.Decimal {
	base := shares(m)
	if base.IsZero() {
		base = decimal.NewFromInt(1)
	}
	return m.Premium.Sub(m.Commission).Sub(m.ClosingCost).Div(base)
}

// BreakEven is the underlying price per share at which the movement nets to
// zero. For a CSP it is strike minus net premium. For every other strategy it
// is the share cost basis (opening price, else current price, else strike)
// minus net premium.
func BreakEven(m domain.Movement) decimal.Decimal {
	perShare := NetPremiumPerShare(m)
	if m.Strategy.Is(domain.StrategyCSP) {
		return m.Strike.Sub(perShare)
	}
	basis := m.Strike
	switch {
	case m.OpeningPrice.Valid:
		basis = m.OpeningPrice.Decimal
	case m.CurrentPrice.Valid:
		basis = m.CurrentPrice.Decimal
	}
	return basis.Sub(perShare)
}
