package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

// ToRow converts m into a store row of plain values (strings, bools, ints,
// time.Time and nil). The id column is included only when m.ID is set.
func ToRow(m domain.Movement) domain.Row {
	row := domain.Row{
		domain.ColEventDate:      m.EventDate.UTC(),
		domain.ColTicker:         m.Ticker,
		domain.ColStrategy:       string(m.Strategy),
		domain.ColContracts:      m.Contracts,
		domain.ColStrike:         DecimalValue(m.Strike),
		domain.ColOpeningPrice:   NullDecimalValue(m.OpeningPrice),
		domain.ColCurrentPrice:   NullDecimalValue(m.CurrentPrice),
		domain.ColPremium:        DecimalValue(m.Premium),
		domain.ColCommission:     DecimalValue(m.Commission),
		domain.ColClosingCost:    DecimalValue(m.ClosingCost),
		domain.ColStartDate:      DateValue(m.StartDate),
		domain.ColExpirationDate: NullDateValue(m.ExpirationDate),
		domain.ColCloseDate:      NullDateValue(m.CloseDate),
		domain.ColStatus:         string(m.Status),
		domain.ColMovementType:   string(m.MovementType),
		domain.ColChainID:        m.ChainID,
		domain.ColIsCurrent:      m.IsCurrent,
		domain.ColNote:           NullStringValue(m.Note),
	}
	if m.ID != 0 {
		row[domain.ColID] = m.ID
	}
	return row
}

// DecimalValue renders d for storage.
func DecimalValue(d decimal.Decimal) string {
	return d.String()
}

// NullDecimalValue renders d for storage, nil when d is null.
func NullDecimalValue(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// DateValue renders a civil date as YYYY-MM-DD.
func DateValue(t time.Time) string {
	return t.UTC().Format(domain.DateLayout)
}

// NullDateValue renders an optional civil date, nil when t is nil.
func NullDateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return DateValue(*t)
}

// NullStringValue dereferences s. Nil and empty strings are both stored as
// NULL, matching what Normalize reads back.
func NullStringValue(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
