package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SharesPerContract is the number of underlying shares one option contract covers.
const SharesPerContract = 100

// Strategy identifies the option strategy a chain follows. Values other than
// CSP and CC are carried through unchanged.
type Strategy string

const (
	StrategyCSP Strategy = "CSP" // cash-secured put
	StrategyCC  Strategy = "CC"  // covered call
)

// Is reports whether s names the same strategy as other, ignoring case.
func (s Strategy) Is(other Strategy) bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(other))
}

// Status is the lifecycle state of a single movement. The values are the ones
// persisted in the ledger table and written to CSV.
type Status string

const (
	StatusOpen     Status = "Abierta"
	StatusRolled   Status = "Roleada"
	StatusClosed   Status = "Cerrada"
	StatusAssigned Status = "Asignada"
)

// MovementType records which transition produced a movement.
type MovementType string

const (
	MovementOpen       MovementType = "apertura"
	MovementRoll       MovementType = "roll"
	MovementClose      MovementType = "cierre"
	MovementAssignment MovementType = "asignacion"
)

// Movement is one logged event in the life of an option position. Movements
// sharing a ChainID form a chain; at most one of them is current.
type Movement struct {
	ID             int64               `json:"id"`
	ChainID        string              `json:"chain_id"`
	Ticker         string              `json:"ticker"`
	Strategy       Strategy            `json:"strategy"`
	Contracts      int                 `json:"contracts"`
	Strike         decimal.Decimal     `json:"strike"`
	OpeningPrice   decimal.NullDecimal `json:"opening_price"`
	CurrentPrice   decimal.NullDecimal `json:"current_price"`
	Premium        decimal.Decimal     `json:"premium_received"`
	Commission     decimal.Decimal     `json:"commission"`
	ClosingCost    decimal.Decimal     `json:"closing_cost"`
	StartDate      time.Time           `json:"start_date"`
	ExpirationDate *time.Time          `json:"expiration_date"`
	CloseDate      *time.Time          `json:"close_date"`
	EventDate      time.Time           `json:"event_date"`
	Status         Status              `json:"status"`
	MovementType   MovementType        `json:"movement_type"`
	IsCurrent      bool                `json:"is_current_position"`
	Note           *string             `json:"note"`
}

// Shares returns the number of underlying shares the movement covers.
func (m Movement) Shares() int64 {
	return int64(m.Contracts) * SharesPerContract
}

// Column names of the ledger table. CSV headers reuse the same names.
const (
	ColID             = "id"
	ColEventDate      = "fecha_evento"
	ColTicker         = "ticker"
	ColStrategy       = "estrategia"
	ColContracts      = "contratos"
	ColStrike         = "strike"
	ColOpeningPrice   = "precio_apertura"
	ColCurrentPrice   = "precio_actual"
	ColPremium        = "prima_recibida"
	ColCommission     = "comision"
	ColClosingCost    = "costo_cierre"
	ColStartDate      = "fecha_inicio"
	ColExpirationDate = "fecha_vencimiento"
	ColCloseDate      = "fecha_cierre"
	ColStatus         = "estado"
	ColMovementType   = "tipo_movimiento"
	ColChainID        = "cadena_id"
	ColIsCurrent      = "es_posicion_actual"
	ColNote           = "nota"
)

// DateLayout is the layout of civil dates (start, expiration, close).
const DateLayout = "2006-01-02"
