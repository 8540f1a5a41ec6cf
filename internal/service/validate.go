package service

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

func (in OpenInput) validate() error {
	if in.Ticker == "" {
		return domain.Invalid(domain.ColTicker, "required")
	}
	if in.Contracts < 1 {
		return domain.Invalid(domain.ColContracts, "must be at least 1")
	}
	if !in.Strike.IsPositive() {
		return domain.Invalid(domain.ColStrike, "must be positive")
	}
	if in.OpeningPrice.Valid && !in.OpeningPrice.Decimal.IsPositive() {
		return domain.Invalid(domain.ColOpeningPrice, "must be positive")
	}
	if err := nonNegative(domain.ColPremium, in.Premium); err != nil {
		return err
	}
	if err := nonNegative(domain.ColCommission, in.Commission); err != nil {
		return err
	}
	if in.StartDate.IsZero() {
		return domain.Invalid(domain.ColStartDate, "required")
	}
	if in.ExpirationDate != nil && in.ExpirationDate.Before(in.StartDate) {
		return domain.Invalid(domain.ColExpirationDate, "before start date")
	}
	return nil
}

func (in RollInput) validate() error {
	if in.ID <= 0 {
		return domain.Invalid(domain.ColID, "required")
	}
	if in.NewStartDate.IsZero() {
		return domain.Invalid(domain.ColStartDate, "required")
	}
	if in.NewExpirationDate != nil && in.NewExpirationDate.Before(in.NewStartDate) {
		return domain.Invalid(domain.ColExpirationDate, "before start date")
	}
	if !in.NewStrike.IsPositive() {
		return domain.Invalid(domain.ColStrike, "must be positive")
	}
	if err := nonNegative(domain.ColPremium, in.NewPremium); err != nil {
		return err
	}
	if err := nonNegative(domain.ColCommission, in.NewCommission); err != nil {
		return err
	}
	if err := nonNegative(domain.ColClosingCost, in.ClosingCost); err != nil {
		return err
	}
	if in.CurrentPrice.Valid && !in.CurrentPrice.Decimal.IsPositive() {
		return domain.Invalid(domain.ColCurrentPrice, "must be positive")
	}
	return nil
}

func (in CloseInput) validate() error {
	if in.ID <= 0 {
		return domain.Invalid(domain.ColID, "required")
	}
	if in.CloseDate.IsZero() {
		return domain.Invalid(domain.ColCloseDate, "required")
	}
	if err := nonNegative(domain.ColClosingCost, in.ClosingCost); err != nil {
		return err
	}
	if err := nonNegative(domain.ColCommission, in.Commission); err != nil {
		return err
	}
	if in.CurrentPrice.Valid && !in.CurrentPrice.Decimal.IsPositive() {
		return domain.Invalid(domain.ColCurrentPrice, "must be positive")
	}
	return nil
}

func (in AssignInput) validate() error {
	if in.ID <= 0 {
		return domain.Invalid(domain.ColID, "required")
	}
	if in.CloseDate.IsZero() {
		return domain.Invalid(domain.ColCloseDate, "required")
	}
	if !in.Price.IsPositive() {
		return domain.Invalid(domain.ColCurrentPrice, "must be positive")
	}
	if in.Commission.Valid {
		return nonNegative(domain.ColCommission, in.Commission.Decimal)
	}
	return nil
}

func nonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return domain.Invalid(field, "must not be negative")
	}
	return nil
}
