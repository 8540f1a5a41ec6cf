package handler

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
	"github.com/alanyoungcy/optionsledger/internal/service"
)

// fakeLedger records the inputs it receives and returns canned results.
type fakeLedger struct {
	rows    []ledger.Calculated
	err     error
	created service.OpenInput
	updated int64
	rolled  service.RollInput
	closed  service.CloseInput
	assign  service.AssignInput
	revert  int64
	csv     string
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func calc(id int64, ticker string, status domain.Status) ledger.Calculated {
	return ledger.Calculate(domain.Movement{
		ID:        id,
		ChainID:   "chain-" + ticker,
		Ticker:    ticker,
		Strategy:  domain.StrategyCSP,
		Contracts: 1,
		Strike:    dec("100"),
		Premium:   dec("150"),
		Status:    status,
		IsCurrent: status == domain.StatusOpen,
	})
}

func (f *fakeLedger) Current(context.Context) ([]ledger.Calculated, error) {
	var out []ledger.Calculated
	for _, c := range f.rows {
		if c.IsCurrent {
			out = append(out, c)
		}
	}
	return out, f.err
}

func (f *fakeLedger) History(context.Context) ([]ledger.Calculated, error) { return f.rows, f.err }

func (f *fakeLedger) Get(_ context.Context, id int64) (ledger.Calculated, error) {
	if f.err != nil {
		return ledger.Calculated{}, f.err
	}
	for _, c := range f.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return ledger.Calculated{}, domain.ErrNotFound
}

func (f *fakeLedger) Chain(_ context.Context, chainID string) ([]ledger.Calculated, error) {
	rows := ledger.ChainHistory(f.rows, chainID)
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows, nil
}

func (f *fakeLedger) Summary(context.Context) (ledger.Summary, error) {
	return ledger.Summarize(f.rows), f.err
}

func (f *fakeLedger) Create(_ context.Context, in service.OpenInput) (ledger.Calculated, error) {
	f.created = in
	if f.err != nil {
		return ledger.Calculated{}, f.err
	}
	return calc(99, strings.ToUpper(in.Ticker), domain.StatusOpen), nil
}

func (f *fakeLedger) Update(_ context.Context, id int64, in service.OpenInput) (ledger.Calculated, error) {
	f.updated, f.created = id, in
	return calc(id, in.Ticker, domain.StatusOpen), f.err
}

func (f *fakeLedger) Roll(_ context.Context, in service.RollInput) (service.RollResult, error) {
	f.rolled = in
	if f.err != nil {
		return service.RollResult{}, f.err
	}
	return service.RollResult{
		Previous: calc(in.ID, "AAPL", domain.StatusRolled),
		Next:     calc(in.ID+1, "AAPL", domain.StatusOpen),
	}, nil
}

func (f *fakeLedger) Close(_ context.Context, in service.CloseInput) (ledger.Calculated, error) {
	f.closed = in
	return calc(in.ID, "AAPL", domain.StatusClosed), f.err
}

func (f *fakeLedger) Assign(_ context.Context, in service.AssignInput) (ledger.Calculated, error) {
	f.assign = in
	return calc(in.ID, "AAPL", domain.StatusAssigned), f.err
}

func (f *fakeLedger) RevertAssignment(_ context.Context, id int64) (ledger.Calculated, error) {
	f.revert = id
	return calc(id, "AAPL", domain.StatusOpen), f.err
}

func (f *fakeLedger) RevertClose(_ context.Context, id int64) (ledger.Calculated, error) {
	f.revert = id
	return calc(id, "AAPL", domain.StatusOpen), f.err
}

func (f *fakeLedger) ExportCSV(_ context.Context, w io.Writer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	_, err := io.WriteString(w, "fecha_evento,ticker\n")
	return len(f.rows), err
}

func (f *fakeLedger) ImportCSV(_ context.Context, r io.Reader) ([]ledger.Calculated, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.csv = string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return []ledger.Calculated{calc(1, "AAPL", domain.StatusOpen)}, nil
}
