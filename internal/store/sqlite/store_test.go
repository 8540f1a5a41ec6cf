package sqlite

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
	"github.com/alanyoungcy/optionsledger/internal/service"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func movementRow(chain string, event time.Time, current bool) domain.Row {
	return ledger.ToRow(domain.Movement{
		EventDate:    event,
		Ticker:       "AAPL",
		Strategy:     domain.StrategyCSP,
		Contracts:    1,
		Strike:       decimal.NewFromInt(100),
		Premium:      decimal.NewFromInt(200),
		StartDate:    time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:       domain.StatusOpen,
		MovementType: domain.MovementOpen,
		ChainID:      chain,
		IsCurrent:    current,
	})
}

func insertOne(t *testing.T, s *Store, row domain.Row) domain.Movement {
	t.Helper()
	out, err := s.Insert(context.Background(), []domain.Row{row})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return ledger.Normalize(out[0])
}

func TestUpdateIsConditional(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	m := insertOne(t, s, movementRow("c1", time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), true))

	f := domain.Where(domain.ColID, m.ID).And(domain.ColIsCurrent, true)
	row, ok, err := s.Update(ctx, f, domain.Patch{domain.ColIsCurrent: false, domain.ColStatus: string(domain.StatusClosed)})
	if err != nil || !ok {
		t.Fatalf("first update ok=%v err=%v", ok, err)
	}
	if got := ledger.Normalize(row); got.IsCurrent || got.Status != domain.StatusClosed {
		t.Fatalf("updated=%+v", got)
	}

	// Same predicate again: the row is no longer current.
	if _, ok, err := s.Update(ctx, f, domain.Patch{domain.ColStatus: string(domain.StatusRolled)}); err != nil || ok {
		t.Fatalf("second update ok=%v err=%v want ok=false", ok, err)
	}
	if _, ok, err := s.Update(ctx, domain.Where(domain.ColID, int64(999)), domain.Patch{domain.ColNote: "x"}); err != nil || ok {
		t.Fatalf("missing id ok=%v err=%v want ok=false", ok, err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	m := insertOne(t, s, movementRow("c1", time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), true))

	boom := errors.New("insert failed")
	err := s.InTx(ctx, func(tx domain.MovementStore) error {
		if _, ok, err := tx.Update(ctx, domain.Where(domain.ColID, m.ID), domain.Patch{domain.ColIsCurrent: false}); err != nil || !ok {
			t.Fatalf("update in tx ok=%v err=%v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}

	rows, err := s.Select(ctx, domain.Where(domain.ColID, m.ID))
	if err != nil || len(rows) != 1 {
		t.Fatalf("select rows=%d err=%v", len(rows), err)
	}
	if !ledger.Normalize(rows[0]).IsCurrent {
		t.Fatal("update inside a failed transaction should be rolled back")
	}
}

func TestSelectOrdersByEventDateThenID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	early := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	a := insertOne(t, s, movementRow("a", early, false))
	b := insertOne(t, s, movementRow("b", late, false))
	c := insertOne(t, s, movementRow("c", late, false))

	rows, err := s.Select(ctx, domain.Filter{}.Sort(domain.ColEventDate, true).Sort(domain.ColID, true))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	var got []int64
	for _, r := range rows {
		got = append(got, ledger.Normalize(r).ID)
	}
	want := []int64{c.ID, b.ID, a.ID}
	if len(got) != len(want) {
		t.Fatalf("ids=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids=%v want=%v", got, want)
		}
	}

	rows, err = s.Select(ctx, domain.Filter{Limit: 1}.Sort(domain.ColEventDate, false))
	if err != nil || len(rows) != 1 || ledger.Normalize(rows[0]).ID != a.ID {
		t.Fatalf("limit rows=%v err=%v", rows, err)
	}
	if _, err := s.Select(ctx, domain.Where("drop table", 1)); err == nil {
		t.Fatal("unknown column should be rejected")
	}
}

func TestOneCurrentEventPerChain(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	insertOne(t, s, movementRow("c1", at, true))
	insertOne(t, s, movementRow("c1", at, false))
	insertOne(t, s, movementRow("c1", at, false))

	if _, err := s.Insert(ctx, []domain.Row{movementRow("c1", at, true)}); err == nil {
		t.Fatal("second current event in a chain should be rejected")
	}
	insertOne(t, s, movementRow("c2", at, true))
}

func TestLedgerLifecycleOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	svc := service.NewLedgerService(s, NewAuditStore(s), nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	exp := time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC)
	open, err := svc.Create(ctx, service.OpenInput{
		Ticker:         "aapl",
		Strategy:       domain.StrategyCSP,
		Contracts:      1,
		Strike:         decimal.NewFromInt(100),
		Premium:        decimal.NewFromInt(200),
		Commission:     decimal.NewFromInt(1),
		StartDate:      time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: &exp,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !open.Net.Equal(decimal.NewFromInt(199)) || !open.ROI.Equal(decimal.RequireFromString("0.0199")) || !open.BreakEven.Equal(decimal.RequireFromString("98.01")) {
		t.Fatalf("net=%s roi=%s break_even=%s", open.Net, open.ROI, open.BreakEven)
	}

	roll := service.RollInput{
		ID:            open.ID,
		NewStartDate:  exp,
		NewStrike:     decimal.NewFromInt(95),
		NewPremium:    decimal.NewFromInt(150),
		NewCommission: decimal.NewFromInt(1),
		ClosingCost:   decimal.NewFromInt(80),
	}
	res, err := svc.Roll(ctx, roll)
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if _, err := svc.Roll(ctx, roll); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second roll err=%v want ErrInvalidState", err)
	}

	if _, err := svc.Assign(ctx, service.AssignInput{
		ID:        res.Next.ID,
		CloseDate: time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC),
		Price:     decimal.NewFromInt(90),
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	reverted, err := svc.RevertAssignment(ctx, res.Next.ID)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if !reverted.IsCurrent || reverted.Status != domain.StatusOpen || reverted.CloseDate != nil {
		t.Fatalf("reverted=%+v", reverted.Movement)
	}

	current, err := svc.Current(ctx)
	if err != nil || len(current) != 1 || current[0].ID != res.Next.ID {
		t.Fatalf("current=%v err=%v want only the rolled leg", current, err)
	}

	var buf bytes.Buffer
	n, err := svc.ExportCSV(ctx, &buf)
	if err != nil || n != 2 {
		t.Fatalf("export n=%d err=%v", n, err)
	}
	if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 3 {
		t.Fatalf("export lines=%d want header plus 2", len(lines))
	}
}
