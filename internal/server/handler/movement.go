package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
	"github.com/alanyoungcy/optionsledger/internal/service"
)

// LedgerService defines the ledger operations the HTTP API exposes.
type LedgerService interface {
	Current(ctx context.Context) ([]ledger.Calculated, error)
	History(ctx context.Context) ([]ledger.Calculated, error)
	Get(ctx context.Context, id int64) (ledger.Calculated, error)
	Chain(ctx context.Context, chainID string) ([]ledger.Calculated, error)
	Summary(ctx context.Context) (ledger.Summary, error)
	Create(ctx context.Context, in service.OpenInput) (ledger.Calculated, error)
	Update(ctx context.Context, id int64, in service.OpenInput) (ledger.Calculated, error)
	Roll(ctx context.Context, in service.RollInput) (service.RollResult, error)
	Close(ctx context.Context, in service.CloseInput) (ledger.Calculated, error)
	Assign(ctx context.Context, in service.AssignInput) (ledger.Calculated, error)
	RevertAssignment(ctx context.Context, id int64) (ledger.Calculated, error)
	RevertClose(ctx context.Context, id int64) (ledger.Calculated, error)
}

// MovementHandler serves the position lifecycle endpoints.
type MovementHandler struct {
	ledger LedgerService
	logger *slog.Logger
}

// NewMovementHandler creates a MovementHandler.
func NewMovementHandler(l LedgerService, logger *slog.Logger) *MovementHandler {
	return &MovementHandler{ledger: l, logger: logHandler(logger, "movement")}
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}

type openRequest struct {
	Ticker         string              `json:"ticker"`
	Strategy       string              `json:"strategy"`
	Contracts      int                 `json:"contracts"`
	Strike         decimal.Decimal     `json:"strike"`
	OpeningPrice   decimal.NullDecimal `json:"opening_price"`
	Premium        decimal.Decimal     `json:"premium_received"`
	Commission     decimal.Decimal     `json:"commission"`
	StartDate      string              `json:"start_date"`
	ExpirationDate *string             `json:"expiration_date"`
	Note           *string             `json:"note"`
}

func (req openRequest) input() (service.OpenInput, error) {
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return service.OpenInput{}, err
	}
	exp, err := parseOptionalDate("expiration_date", req.ExpirationDate)
	if err != nil {
		return service.OpenInput{}, err
	}
	strategy := domain.Strategy(strings.ToUpper(strings.TrimSpace(req.Strategy)))
	if strategy == "" {
		strategy = domain.StrategyCSP
	}
	return service.OpenInput{
		Ticker:         req.Ticker,
		Strategy:       strategy,
		Contracts:      req.Contracts,
		Strike:         req.Strike,
		OpeningPrice:   req.OpeningPrice,
		Premium:        req.Premium,
		Commission:     req.Commission,
		StartDate:      start,
		ExpirationDate: exp,
		Note:           req.Note,
	}, nil
}

type rollRequest struct {
	NewStartDate      string              `json:"new_start_date"`
	NewExpirationDate *string             `json:"new_expiration_date"`
	NewStrike         decimal.Decimal     `json:"new_strike"`
	NewPremium        decimal.Decimal     `json:"new_premium"`
	NewCommission     decimal.Decimal     `json:"new_commission"`
	ClosingCost       decimal.Decimal     `json:"closing_cost"`
	CurrentPrice      decimal.NullDecimal `json:"current_price"`
	Note              *string             `json:"note"`
}

type closeRequest struct {
	CloseDate    string              `json:"close_date"`
	ClosingCost  decimal.Decimal     `json:"closing_cost"`
	Commission   decimal.Decimal     `json:"commission"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
	Note         *string             `json:"note"`
}

type assignRequest struct {
	CloseDate  string              `json:"close_date"`
	Price      decimal.Decimal     `json:"price"`
	Commission decimal.NullDecimal `json:"commission"`
	Note       *string             `json:"note"`
}

type movementsResponse struct {
	Movements []ledger.Calculated `json:"movements"`
	Total     int                 `json:"total"`
}

func nonNil(rows []ledger.Calculated) []ledger.Calculated {
	if rows == nil {
		return []ledger.Calculated{}
	}
	return rows
}

// ListCurrent returns every current movement, newest start date first.
// GET /api/movements/current
func (h *MovementHandler) ListCurrent(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.Current(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list current movements", err)
		return
	}
	writeJSON(w, http.StatusOK, movementsResponse{Movements: nonNil(rows), Total: len(rows)})
}

// ListHistory returns the filtered history, newest first, one page at a time.
// GET /api/movements/history?ticker=&status=&date=&limit=&offset=
func (h *MovementHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.History(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list history", err)
		return
	}
	q := r.URL.Query()
	rows = ledger.FilterHistory(rows, ledger.HistoryFilter{
		Ticker:     q.Get("ticker"),
		Status:     domain.Status(q.Get("status")),
		DatePrefix: q.Get("date"),
	})

	opts := parseListOpts(r)
	total := len(rows)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)
	writeJSON(w, http.StatusOK, movementsResponse{Movements: nonNil(rows[start:end]), Total: total})
}

// GetMovement returns one movement by id.
// GET /api/movements/{id}
func (h *MovementHandler) GetMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "get movement", err)
		return
	}
	c, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get movement", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetChain returns every event of a chain, oldest first, with the chain's
// net premium.
// GET /api/chains/{chain}
func (h *MovementHandler) GetChain(w http.ResponseWriter, r *http.Request) {
	chainID := r.PathValue("chain")
	rows, err := h.ledger.Chain(r.Context(), chainID)
	if err != nil {
		writeServiceError(w, r, h.logger, "get chain", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chain_id":    chainID,
		"movements":   rows,
		"net_premium": ledger.ChainNetPremium(rows, chainID),
	})
}

// CreateMovement opens a new position.
// POST /api/movements
func (h *MovementHandler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "create movement", err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeServiceError(w, r, h.logger, "create movement", err)
		return
	}
	c, err := h.ledger.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "create movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateMovement edits the terms of an open position.
// PUT /api/movements/{id}
func (h *MovementHandler) UpdateMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "update movement", err)
		return
	}
	var req openRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "update movement", err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeServiceError(w, r, h.logger, "update movement", err)
		return
	}
	c, err := h.ledger.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, h.logger, "update movement", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RollMovement closes the current event and opens its successor.
// POST /api/movements/{id}/roll
func (h *MovementHandler) RollMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "roll", err)
		return
	}
	var req rollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "roll", err)
		return
	}
	start, err := parseDate("new_start_date", req.NewStartDate)
	if err != nil {
		writeServiceError(w, r, h.logger, "roll", err)
		return
	}
	exp, err := parseOptionalDate("new_expiration_date", req.NewExpirationDate)
	if err != nil {
		writeServiceError(w, r, h.logger, "roll", err)
		return
	}

	res, err := h.ledger.Roll(r.Context(), service.RollInput{
		ID:                id,
		NewStartDate:      start,
		NewExpirationDate: exp,
		NewStrike:         req.NewStrike,
		NewPremium:        req.NewPremium,
		NewCommission:     req.NewCommission,
		ClosingCost:       req.ClosingCost,
		CurrentPrice:      req.CurrentPrice,
		Note:              req.Note,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "roll", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CloseMovement closes the position early.
// POST /api/movements/{id}/close
func (h *MovementHandler) CloseMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "close", err)
		return
	}
	var req closeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "close", err)
		return
	}
	closeDate, err := parseDate("close_date", req.CloseDate)
	if err != nil {
		writeServiceError(w, r, h.logger, "close", err)
		return
	}

	c, err := h.ledger.Close(r.Context(), service.CloseInput{
		ID:           id,
		CloseDate:    closeDate,
		ClosingCost:  req.ClosingCost,
		Commission:   req.Commission,
		CurrentPrice: req.CurrentPrice,
		Note:         req.Note,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "close", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AssignMovement records an assignment at expiry.
// POST /api/movements/{id}/assign
func (h *MovementHandler) AssignMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "assign", err)
		return
	}
	var req assignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "assign", err)
		return
	}
	closeDate, err := parseDate("close_date", req.CloseDate)
	if err != nil {
		writeServiceError(w, r, h.logger, "assign", err)
		return
	}

	c, err := h.ledger.Assign(r.Context(), service.AssignInput{
		ID:         id,
		CloseDate:  closeDate,
		Price:      req.Price,
		Commission: req.Commission,
		Note:       req.Note,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "assign", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RevertAssignment reopens an assigned position.
// POST /api/movements/{id}/revert-assignment
func (h *MovementHandler) RevertAssignment(w http.ResponseWriter, r *http.Request) {
	h.revert(w, r, "revert assignment", h.ledger.RevertAssignment)
}

// RevertClose reopens a closed position.
// POST /api/movements/{id}/revert-close
func (h *MovementHandler) RevertClose(w http.ResponseWriter, r *http.Request) {
	h.revert(w, r, "revert close", h.ledger.RevertClose)
}

func (h *MovementHandler) revert(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, int64) (ledger.Calculated, error)) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	c, err := fn(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
