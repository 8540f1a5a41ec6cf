package sqlite

import (
	"testing"
	"time"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

func TestRecordRoundTrip(t *testing.T) {
	row := domain.Row{
		domain.ColEventDate:      "2024-03-01T14:30:00Z",
		domain.ColTicker:         "AMD",
		domain.ColStrategy:       "CSP",
		domain.ColContracts:      "3",
		domain.ColStrike:         "150.50",
		domain.ColOpeningPrice:   nil,
		domain.ColCurrentPrice:   "148",
		domain.ColPremium:        420.5,
		domain.ColCommission:     "1.95",
		domain.ColClosingCost:    "0",
		domain.ColStartDate:      "2024-03-01",
		domain.ColExpirationDate: "2024-03-15",
		domain.ColStatus:         "Abierta",
		domain.ColMovementType:   "apertura",
		domain.ColChainID:        "c-9",
		domain.ColIsCurrent:      true,
	}
	rec := recordFromRow(row)
	if rec.Strike != "150.5" || rec.Contracts != 3 {
		t.Fatalf("strike=%s contracts=%d want 150.5 3", rec.Strike, rec.Contracts)
	}
	if rec.OpeningPrice != nil || rec.CurrentPrice == nil || *rec.CurrentPrice != "148" {
		t.Fatalf("opening=%v current=%v", rec.OpeningPrice, rec.CurrentPrice)
	}
	if rec.CloseDate != nil || rec.ExpirationDate == nil || *rec.ExpirationDate != "2024-03-15" {
		t.Fatalf("close=%v expiration=%v", rec.CloseDate, rec.ExpirationDate)
	}

	rec.ID = 11
	m := ledger.Normalize(rec.row())
	if m.ID != 11 || m.ChainID != "c-9" || !m.IsCurrent {
		t.Fatalf("movement=%+v", m)
	}
	if m.Premium.String() != "420.5" || m.Commission.String() != "1.95" {
		t.Fatalf("premium=%s commission=%s", m.Premium, m.Commission)
	}
	if !m.EventDate.Equal(time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("event_date=%v", m.EventDate)
	}
	if m.Note != nil || m.CloseDate != nil || m.OpeningPrice.Valid {
		t.Fatalf("nullable fields should stay null: %+v", m)
	}
}

func TestTableNames(t *testing.T) {
	if got := (movementRecord{}).TableName(); got != "historial_operaciones" {
		t.Fatalf("movement table=%s", got)
	}
	if got := (auditRecord{}).TableName(); got != "audit_log" {
		t.Fatalf("audit table=%s", got)
	}
}
