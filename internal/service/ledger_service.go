package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/csvcodec"
	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
	"github.com/alanyoungcy/optionsledger/internal/notify"
)

// LedgerChannel is the event bus channel ledger changes are published on.
const LedgerChannel = "ledger"

// Notifier is the subset of notify.Notifier the ledger uses.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// OpenInput holds the user-editable fields of a position. It is used both to
// open a new chain and to edit the current open event of one.
type OpenInput struct {
	Ticker         string              `json:"ticker"`
	Strategy       domain.Strategy     `json:"strategy"`
	Contracts      int                 `json:"contracts"`
	Strike         decimal.Decimal     `json:"strike"`
	OpeningPrice   decimal.NullDecimal `json:"opening_price"`
	Premium        decimal.Decimal     `json:"premium_received"`
	Commission     decimal.Decimal     `json:"commission"`
	StartDate      time.Time           `json:"start_date"`
	ExpirationDate *time.Time          `json:"expiration_date"`
	Note           *string             `json:"note"`
}

// RollInput closes the current leg of a chain and opens the next one.
// ClosingCost is what it cost to buy back the current leg.
type RollInput struct {
	ID                int64               `json:"id"`
	NewStartDate      time.Time           `json:"new_start_date"`
	NewExpirationDate *time.Time          `json:"new_expiration_date"`
	NewStrike         decimal.Decimal     `json:"new_strike"`
	NewPremium        decimal.Decimal     `json:"new_premium"`
	NewCommission     decimal.Decimal     `json:"new_commission"`
	ClosingCost       decimal.Decimal     `json:"closing_cost"`
	CurrentPrice      decimal.NullDecimal `json:"current_price"`
	Note              *string             `json:"note"`
}

// CloseInput ends a chain by buying back or letting the option expire.
type CloseInput struct {
	ID           int64               `json:"id"`
	CloseDate    time.Time           `json:"close_date"`
	ClosingCost  decimal.Decimal     `json:"closing_cost"`
	Commission   decimal.Decimal     `json:"commission"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
	Note         *string             `json:"note"`
}

// AssignInput ends a chain by assignment at Price. A null Commission leaves
// the recorded commission unchanged.
type AssignInput struct {
	ID         int64               `json:"id"`
	CloseDate  time.Time           `json:"close_date"`
	Price      decimal.Decimal     `json:"price"`
	Commission decimal.NullDecimal `json:"commission"`
	Note       *string             `json:"note"`
}

// RollResult holds both sides of a roll.
type RollResult struct {
	Previous ledger.Calculated `json:"previous"`
	Next     ledger.Calculated `json:"next"`
}

// LedgerService runs the position lifecycle against a MovementStore. Every
// transition is a conditional update on the current event of a chain, so of
// two racing transitions only one can succeed.
type LedgerService struct {
	store    domain.MovementStore
	audit    domain.AuditStore
	bus      domain.EventBus
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewLedgerService creates a LedgerService. audit, bus and notifier are
// optional and may be nil.
func NewLedgerService(
	store domain.MovementStore,
	audit domain.AuditStore,
	bus domain.EventBus,
	notifier Notifier,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		store:    store,
		audit:    audit,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "ledger_service")),
		now:      time.Now,
	}
}

func (s *LedgerService) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ---------- reads ----------

// Current returns the live event of every open chain, newest start first.
func (s *LedgerService) Current(ctx context.Context) ([]ledger.Calculated, error) {
	rows, err := s.store.Select(ctx, domain.Where(domain.ColIsCurrent, true).Sort(domain.ColStartDate, true))
	if err != nil {
		return nil, fmt.Errorf("ledger_service: select current: %w", err)
	}
	return ledger.CalculateAll(ledger.NormalizeAll(rows)), nil
}

// History returns every event, newest first.
func (s *LedgerService) History(ctx context.Context) ([]ledger.Calculated, error) {
	f := domain.Filter{}.Sort(domain.ColEventDate, true).Sort(domain.ColID, true)
	rows, err := s.store.Select(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: select history: %w", err)
	}
	return ledger.CalculateAll(ledger.NormalizeAll(rows)), nil
}

// Get returns a single event by id.
func (s *LedgerService) Get(ctx context.Context, id int64) (ledger.Calculated, error) {
	m, err := s.load(ctx, s.store, id)
	if err != nil {
		return ledger.Calculated{}, err
	}
	return ledger.Calculate(m), nil
}

// Chain returns the events of one chain, oldest first.
func (s *LedgerService) Chain(ctx context.Context, chainID string) ([]ledger.Calculated, error) {
	rows, err := s.store.Select(ctx, domain.Where(domain.ColChainID, chainID))
	if err != nil {
		return nil, fmt.Errorf("ledger_service: select chain %q: %w", chainID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("ledger_service: chain %q: %w", chainID, domain.ErrNotFound)
	}
	return ledger.ChainHistory(ledger.CalculateAll(ledger.NormalizeAll(rows)), chainID), nil
}

// Summary aggregates the full history.
func (s *LedgerService) Summary(ctx context.Context) (ledger.Summary, error) {
	history, err := s.History(ctx)
	if err != nil {
		return ledger.Summary{}, err
	}
	return ledger.Summarize(history), nil
}

// ---------- transitions ----------

// Create opens a new chain.
func (s *LedgerService) Create(ctx context.Context, in OpenInput) (ledger.Calculated, error) {
	in.Ticker = strings.ToUpper(strings.TrimSpace(in.Ticker))
	if in.Strategy == "" {
		in.Strategy = domain.StrategyCSP
	}
	if err := in.validate(); err != nil {
		return ledger.Calculated{}, err
	}

	m := domain.Movement{
		ChainID:        uuid.NewString(),
		Ticker:         in.Ticker,
		Strategy:       in.Strategy,
		Contracts:      in.Contracts,
		Strike:         in.Strike,
		OpeningPrice:   in.OpeningPrice,
		Premium:        in.Premium,
		Commission:     in.Commission,
		ClosingCost:    decimal.Zero,
		StartDate:      in.StartDate,
		ExpirationDate: in.ExpirationDate,
		EventDate:      s.now().UTC(),
		Status:         domain.StatusOpen,
		MovementType:   domain.MovementOpen,
		IsCurrent:      true,
		Note:           in.Note,
	}
	rows, err := s.store.Insert(ctx, []domain.Row{ledger.ToRow(m)})
	if err != nil {
		return ledger.Calculated{}, fmt.Errorf("ledger_service: insert movement: %w", err)
	}
	if len(rows) != 1 {
		return ledger.Calculated{}, fmt.Errorf("ledger_service: insert movement: store returned %d rows", len(rows))
	}

	c := ledger.Calculate(ledger.Normalize(rows[0]))
	s.record(ctx, "position_opened", c)
	return c, nil
}

// Update edits the fields of a current, open event in place.
func (s *LedgerService) Update(ctx context.Context, id int64, in OpenInput) (ledger.Calculated, error) {
	in.Ticker = strings.ToUpper(strings.TrimSpace(in.Ticker))
	if in.Strategy == "" {
		in.Strategy = domain.StrategyCSP
	}
	if err := in.validate(); err != nil {
		return ledger.Calculated{}, err
	}

	cur, err := s.loadCurrent(ctx, s.store, id)
	if err != nil {
		return ledger.Calculated{}, err
	}
	if cur.Status != domain.StatusOpen {
		return ledger.Calculated{}, &domain.StateError{ID: id, Expect: string(domain.StatusOpen), Actual: string(cur.Status)}
	}

	patch := domain.Patch{
		domain.ColTicker:         in.Ticker,
		domain.ColStrategy:       string(in.Strategy),
		domain.ColContracts:      in.Contracts,
		domain.ColStrike:         ledger.DecimalValue(in.Strike),
		domain.ColOpeningPrice:   ledger.NullDecimalValue(in.OpeningPrice),
		domain.ColPremium:        ledger.DecimalValue(in.Premium),
		domain.ColCommission:     ledger.DecimalValue(in.Commission),
		domain.ColStartDate:      ledger.DateValue(in.StartDate),
		domain.ColExpirationDate: ledger.NullDateValue(in.ExpirationDate),
		domain.ColNote:           ledger.NullStringValue(in.Note),
	}
	f := currentFilter(id).And(domain.ColStatus, string(domain.StatusOpen))
	c, err := s.apply(ctx, s.store, id, f, patch, string(domain.StatusOpen))
	if err != nil {
		return ledger.Calculated{}, err
	}
	s.record(ctx, "position_updated", c)
	return c, nil
}

// Roll marks the current event of a chain as rolled and opens the next leg
// on the same chain. Both writes share one store transaction when the store
// supports it.
func (s *LedgerService) Roll(ctx context.Context, in RollInput) (RollResult, error) {
	if err := in.validate(); err != nil {
		return RollResult{}, err
	}

	var res RollResult
	err := s.inTx(ctx, func(store domain.MovementStore) error {
		cur, err := s.loadCurrent(ctx, store, in.ID)
		if err != nil {
			return err
		}

		currentPrice := cur.CurrentPrice
		if in.CurrentPrice.Valid {
			currentPrice = in.CurrentPrice
		}
		note := cur.Note
		if in.Note != nil {
			note = in.Note
		}
		closeDate := in.NewStartDate
		patch := domain.Patch{
			domain.ColIsCurrent:    false,
			domain.ColStatus:       string(domain.StatusRolled),
			domain.ColMovementType: string(domain.MovementRoll),
			domain.ColCloseDate:    ledger.NullDateValue(&closeDate),
			domain.ColClosingCost:  ledger.DecimalValue(cur.ClosingCost.Add(in.ClosingCost)),
			domain.ColCommission:   ledger.DecimalValue(cur.Commission.Add(in.NewCommission)),
			domain.ColCurrentPrice: ledger.NullDecimalValue(currentPrice),
			domain.ColNote:         ledger.NullStringValue(note),
		}
		prev, err := s.apply(ctx, store, in.ID, currentFilter(in.ID), patch, "current")
		if err != nil {
			return err
		}

		opening := cur.OpeningPrice
		if in.CurrentPrice.Valid {
			opening = in.CurrentPrice
		}
		next := domain.Movement{
			ChainID:        cur.ChainID,
			Ticker:         cur.Ticker,
			Strategy:       cur.Strategy,
			Contracts:      cur.Contracts,
			Strike:         in.NewStrike,
			OpeningPrice:   opening,
			Premium:        in.NewPremium,
			Commission:     in.NewCommission,
			ClosingCost:    decimal.Zero,
			StartDate:      in.NewStartDate,
			ExpirationDate: in.NewExpirationDate,
			EventDate:      s.now().UTC(),
			Status:         domain.StatusOpen,
			MovementType:   domain.MovementRoll,
			IsCurrent:      true,
			Note:           in.Note,
		}
		rows, err := store.Insert(ctx, []domain.Row{ledger.ToRow(next)})
		if err != nil {
			return fmt.Errorf("ledger_service: insert rolled leg of %d: %w", in.ID, err)
		}
		if len(rows) != 1 {
			return fmt.Errorf("ledger_service: insert rolled leg of %d: store returned %d rows", in.ID, len(rows))
		}
		res = RollResult{Previous: prev, Next: ledger.Calculate(ledger.Normalize(rows[0]))}
		return nil
	})
	if err != nil {
		return RollResult{}, err
	}

	s.record(ctx, "position_rolled", res.Next)
	return res, nil
}

// Close ends a chain.
func (s *LedgerService) Close(ctx context.Context, in CloseInput) (ledger.Calculated, error) {
	if err := in.validate(); err != nil {
		return ledger.Calculated{}, err
	}
	cur, err := s.loadCurrent(ctx, s.store, in.ID)
	if err != nil {
		return ledger.Calculated{}, err
	}

	note := cur.Note
	if in.Note != nil {
		note = in.Note
	}
	closeDate := in.CloseDate
	patch := domain.Patch{
		domain.ColIsCurrent:    false,
		domain.ColStatus:       string(domain.StatusClosed),
		domain.ColMovementType: string(domain.MovementClose),
		domain.ColCloseDate:    ledger.NullDateValue(&closeDate),
		domain.ColClosingCost:  ledger.DecimalValue(in.ClosingCost),
		domain.ColCommission:   ledger.DecimalValue(in.Commission),
		domain.ColCurrentPrice: ledger.NullDecimalValue(in.CurrentPrice),
		domain.ColNote:         ledger.NullStringValue(note),
	}
	c, err := s.apply(ctx, s.store, in.ID, currentFilter(in.ID), patch, "current")
	if err != nil {
		return ledger.Calculated{}, err
	}
	s.record(ctx, "position_closed", c)
	return c, nil
}

// Assign ends a chain by assignment. A loss on the exchanged shares is
// booked as an additional closing cost.
func (s *LedgerService) Assign(ctx context.Context, in AssignInput) (ledger.Calculated, error) {
	if err := in.validate(); err != nil {
		return ledger.Calculated{}, err
	}
	cur, err := s.loadCurrent(ctx, s.store, in.ID)
	if err != nil {
		return ledger.Calculated{}, err
	}

	assigned := cur
	assigned.Status = domain.StatusAssigned
	assigned.CurrentPrice = decimal.NewNullDecimal(in.Price)
	loss := decimal.Max(decimal.Zero, ledger.AssignmentPL(assigned).Neg())

	commission := cur.Commission
	if in.Commission.Valid {
		commission = in.Commission.Decimal
	}
	note := cur.Note
	if in.Note != nil {
		note = in.Note
	}
	closeDate := in.CloseDate
	patch := domain.Patch{
		domain.ColIsCurrent:    false,
		domain.ColStatus:       string(domain.StatusAssigned),
		domain.ColMovementType: string(domain.MovementAssignment),
		domain.ColCloseDate:    ledger.NullDateValue(&closeDate),
		domain.ColCurrentPrice: ledger.DecimalValue(in.Price),
		domain.ColCommission:   ledger.DecimalValue(commission),
		domain.ColClosingCost:  ledger.DecimalValue(cur.ClosingCost.Add(loss)),
		domain.ColNote:         ledger.NullStringValue(note),
	}
	c, err := s.apply(ctx, s.store, in.ID, currentFilter(in.ID), patch, "current")
	if err != nil {
		return ledger.Calculated{}, err
	}
	s.record(ctx, "position_assigned", c)
	return c, nil
}

// RevertAssignment reopens an assigned event.
func (s *LedgerService) RevertAssignment(ctx context.Context, id int64) (ledger.Calculated, error) {
	return s.revert(ctx, id, domain.StatusAssigned, "assignment_reverted")
}

// RevertClose reopens a closed event.
func (s *LedgerService) RevertClose(ctx context.Context, id int64) (ledger.Calculated, error) {
	return s.revert(ctx, id, domain.StatusClosed, "close_reverted")
}

func (s *LedgerService) revert(ctx context.Context, id int64, required domain.Status, event string) (ledger.Calculated, error) {
	cur, err := s.load(ctx, s.store, id)
	if err != nil {
		return ledger.Calculated{}, err
	}
	if cur.Status != required {
		return ledger.Calculated{}, &domain.StateError{ID: id, Expect: string(required), Actual: string(cur.Status)}
	}

	// Reopening must not leave two current events on the chain.
	live, err := s.store.Select(ctx, domain.Where(domain.ColChainID, cur.ChainID).And(domain.ColIsCurrent, true))
	if err != nil {
		return ledger.Calculated{}, fmt.Errorf("ledger_service: select chain %q: %w", cur.ChainID, err)
	}
	for _, m := range ledger.NormalizeAll(live) {
		if m.ID != id {
			return ledger.Calculated{}, &domain.StateError{
				ID:     id,
				Expect: "no other current event in chain",
				Actual: fmt.Sprintf("event %d is current", m.ID),
			}
		}
	}

	patch := domain.Patch{
		domain.ColStatus:       string(domain.StatusOpen),
		domain.ColIsCurrent:    true,
		domain.ColMovementType: string(domain.MovementOpen),
		domain.ColCloseDate:    nil,
		domain.ColCurrentPrice: nil,
		domain.ColClosingCost:  ledger.DecimalValue(decimal.Zero),
		domain.ColCommission:   ledger.DecimalValue(decimal.Zero),
	}
	f := domain.Where(domain.ColID, id).And(domain.ColStatus, string(required))
	c, err := s.apply(ctx, s.store, id, f, patch, string(required))
	if err != nil {
		return ledger.Calculated{}, err
	}
	s.record(ctx, event, c)
	return c, nil
}

// ---------- import / export ----------

// Import bulk-inserts movements, filling in defaults for missing fields. An
// empty slice is a no-op.
func (s *LedgerService) Import(ctx context.Context, ms []domain.Movement) ([]ledger.Calculated, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	now := s.now().UTC()
	today := s.today()

	rows := make([]domain.Row, 0, len(ms))
	for _, m := range ms {
		m.ID = 0
		if m.EventDate.IsZero() {
			m.EventDate = now
		}
		m.Ticker = strings.ToUpper(strings.TrimSpace(m.Ticker))
		if m.Strategy == "" {
			m.Strategy = domain.StrategyCSP
		}
		if m.Contracts < 1 {
			m.Contracts = 1
		}
		if m.StartDate.IsZero() {
			m.StartDate = today
		}
		if m.Status == "" {
			m.Status = domain.StatusOpen
		}
		if m.MovementType == "" {
			m.MovementType = domain.MovementOpen
		}
		if m.ChainID == "" {
			m.ChainID = uuid.NewString()
		}
		rows = append(rows, ledger.ToRow(m))
	}

	inserted, err := s.store.Insert(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: import %d movements: %w", len(rows), err)
	}
	out := ledger.CalculateAll(ledger.NormalizeAll(inserted))

	s.auditLog(ctx, "ledger_imported", map[string]any{"count": len(out)})
	s.publish(ctx, "ledger_imported", map[string]any{"count": len(out)})
	s.logger.InfoContext(ctx, "ledger_service: history imported", slog.Int("count", len(out)))
	return out, nil
}

// ImportCSV parses r and imports its rows. A malformed file is rejected
// before anything is written.
func (s *LedgerService) ImportCSV(ctx context.Context, r io.Reader) ([]ledger.Calculated, error) {
	ms, err := csvcodec.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: parse csv: %w", err)
	}
	return s.Import(ctx, ms)
}

// ExportCSV writes the full history to w.
func (s *LedgerService) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	history, err := s.History(ctx)
	if err != nil {
		return 0, err
	}
	ms := make([]domain.Movement, 0, len(history))
	for _, c := range history {
		ms = append(ms, c.Movement)
	}
	if err := csvcodec.Write(w, ms); err != nil {
		return 0, fmt.Errorf("ledger_service: write csv: %w", err)
	}
	return len(ms), nil
}

// ---------- helpers ----------

func currentFilter(id int64) domain.Filter {
	return domain.Where(domain.ColID, id).And(domain.ColIsCurrent, true)
}

func (s *LedgerService) load(ctx context.Context, store domain.MovementStore, id int64) (domain.Movement, error) {
	rows, err := store.Select(ctx, domain.Where(domain.ColID, id))
	if err != nil {
		return domain.Movement{}, fmt.Errorf("ledger_service: select movement %d: %w", id, err)
	}
	if len(rows) == 0 {
		return domain.Movement{}, fmt.Errorf("ledger_service: movement %d: %w", id, domain.ErrNotFound)
	}
	return ledger.Normalize(rows[0]), nil
}

func (s *LedgerService) loadCurrent(ctx context.Context, store domain.MovementStore, id int64) (domain.Movement, error) {
	m, err := s.load(ctx, store, id)
	if err != nil {
		return domain.Movement{}, err
	}
	if !m.IsCurrent {
		return domain.Movement{}, &domain.StateError{ID: id, Expect: "current", Actual: string(m.Status)}
	}
	return m, nil
}

// apply runs the conditional update. Zero affected rows means another caller
// changed the event since it was read.
func (s *LedgerService) apply(ctx context.Context, store domain.MovementStore, id int64, f domain.Filter, patch domain.Patch, expect string) (ledger.Calculated, error) {
	row, ok, err := store.Update(ctx, f, patch)
	if err != nil {
		return ledger.Calculated{}, fmt.Errorf("ledger_service: update movement %d: %w", id, err)
	}
	if !ok {
		return ledger.Calculated{}, &domain.StateError{ID: id, Expect: expect}
	}
	return ledger.Calculate(ledger.Normalize(row)), nil
}

func (s *LedgerService) inTx(ctx context.Context, fn func(domain.MovementStore) error) error {
	if tx, ok := s.store.(domain.TxStore); ok {
		return tx.InTx(ctx, fn)
	}
	err := fn(s.store)
	if err != nil {
		s.logger.WarnContext(ctx, "ledger_service: store has no transactions, chain may be left without a current event",
			slog.String("error", err.Error()),
		)
	}
	return err
}

func (s *LedgerService) record(ctx context.Context, event string, c ledger.Calculated) {
	detail := map[string]any{
		"id":       c.ID,
		"chain_id": c.ChainID,
		"ticker":   c.Ticker,
		"status":   string(c.Status),
		"net":      c.Net.String(),
	}
	s.auditLog(ctx, event, detail)
	s.publish(ctx, event, map[string]any{"movement": c})

	if s.notifier != nil {
		title, msg := notify.MovementMessage(event, c)
		if err := s.notifier.Notify(ctx, event, title, msg); err != nil {
			s.logger.WarnContext(ctx, "ledger_service: notify failed",
				slog.Int64("id", c.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "ledger_service: "+strings.ReplaceAll(event, "_", " "),
		slog.Int64("id", c.ID),
		slog.String("chain_id", c.ChainID),
		slog.String("ticker", c.Ticker),
		slog.String("net", c.Net.String()),
	)
}

func (s *LedgerService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "ledger_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *LedgerService) publish(ctx context.Context, event string, fields map[string]any) {
	if s.bus == nil {
		return
	}
	fields["event"] = event
	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, LedgerChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "ledger_service: publish event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
