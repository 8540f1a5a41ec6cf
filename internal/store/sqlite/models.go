package sqlite

import (
	"time"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

// movementRecord is the ledger table. Money is kept as decimal text so no
// precision is lost to float columns.
type movementRecord struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventDate      time.Time `gorm:"column:fecha_evento;not null;index:idx_historial_evento"`
	Ticker         string    `gorm:"column:ticker;not null"`
	Strategy       string    `gorm:"column:estrategia;not null"`
	Contracts      int       `gorm:"column:contratos;not null"`
	Strike         string    `gorm:"column:strike;type:text;not null"`
	OpeningPrice   *string   `gorm:"column:precio_apertura;type:text"`
	CurrentPrice   *string   `gorm:"column:precio_actual;type:text"`
	Premium        string    `gorm:"column:prima_recibida;type:text;not null"`
	Commission     string    `gorm:"column:comision;type:text;not null"`
	ClosingCost    string    `gorm:"column:costo_cierre;type:text;not null"`
	StartDate      string    `gorm:"column:fecha_inicio;type:text;not null"`
	ExpirationDate *string   `gorm:"column:fecha_vencimiento;type:text"`
	CloseDate      *string   `gorm:"column:fecha_cierre;type:text"`
	Status         string    `gorm:"column:estado;not null;index"`
	MovementType   string    `gorm:"column:tipo_movimiento;not null"`
	ChainID        string    `gorm:"column:cadena_id;not null;index:idx_historial_cadena;uniqueIndex:uq_historial_cadena_actual,where:es_posicion_actual"`
	IsCurrent      bool      `gorm:"column:es_posicion_actual;not null;index"`
	Note           *string   `gorm:"column:nota"`
}

func (movementRecord) TableName() string { return "historial_operaciones" }

// auditRecord is one audit log entry; Detail holds JSON.
type auditRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Event     string    `gorm:"not null;index"`
	Detail    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

func (auditRecord) TableName() string { return "audit_log" }

func strPtr(v any) *string {
	if v == nil {
		return nil
	}
	s, _ := v.(string)
	return &s
}

// recordFromRow converts a loosely typed row into a record.
func recordFromRow(row domain.Row) movementRecord {
	m := ledger.Normalize(row)
	return movementRecord{
		ID:             m.ID,
		EventDate:      m.EventDate.UTC(),
		Ticker:         m.Ticker,
		Strategy:       string(m.Strategy),
		Contracts:      m.Contracts,
		Strike:         ledger.DecimalValue(m.Strike),
		OpeningPrice:   strPtr(ledger.NullDecimalValue(m.OpeningPrice)),
		CurrentPrice:   strPtr(ledger.NullDecimalValue(m.CurrentPrice)),
		Premium:        ledger.DecimalValue(m.Premium),
		Commission:     ledger.DecimalValue(m.Commission),
		ClosingCost:    ledger.DecimalValue(m.ClosingCost),
		StartDate:      ledger.DateValue(m.StartDate),
		ExpirationDate: strPtr(ledger.NullDateValue(m.ExpirationDate)),
		CloseDate:      strPtr(ledger.NullDateValue(m.CloseDate)),
		Status:         string(m.Status),
		MovementType:   string(m.MovementType),
		ChainID:        m.ChainID,
		IsCurrent:      m.IsCurrent,
		Note:           m.Note,
	}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (r movementRecord) row() domain.Row {
	return domain.Row{
		domain.ColID:             r.ID,
		domain.ColEventDate:      r.EventDate,
		domain.ColTicker:         r.Ticker,
		domain.ColStrategy:       r.Strategy,
		domain.ColContracts:      r.Contracts,
		domain.ColStrike:         r.Strike,
		domain.ColOpeningPrice:   nullable(r.OpeningPrice),
		domain.ColCurrentPrice:   nullable(r.CurrentPrice),
		domain.ColPremium:        r.Premium,
		domain.ColCommission:     r.Commission,
		domain.ColClosingCost:    r.ClosingCost,
		domain.ColStartDate:      r.StartDate,
		domain.ColExpirationDate: nullable(r.ExpirationDate),
		domain.ColCloseDate:      nullable(r.CloseDate),
		domain.ColStatus:         r.Status,
		domain.ColMovementType:   r.MovementType,
		domain.ColChainID:        r.ChainID,
		domain.ColIsCurrent:      r.IsCurrent,
		domain.ColNote:           nullable(r.Note),
	}
}
