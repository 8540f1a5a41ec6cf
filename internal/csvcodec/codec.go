// Package csvcodec reads and writes the ledger history as CSV. The column set
// is fixed and matches the ledger table, so an export can be re-imported
// into an empty ledger unchanged (ids excluded).
package csvcodec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

// Columns is the header written on export and required on import, in order.
var Columns = []string{
	domain.ColEventDate,
	domain.ColTicker,
	domain.ColStrategy,
	domain.ColContracts,
	domain.ColStrike,
	domain.ColOpeningPrice,
	domain.ColCurrentPrice,
	domain.ColPremium,
	domain.ColCommission,
	domain.ColClosingCost,
	domain.ColStartDate,
	domain.ColExpirationDate,
	domain.ColCloseDate,
	domain.ColStatus,
	domain.ColMovementType,
	domain.ColChainID,
	domain.ColIsCurrent,
	domain.ColNote,
}

// FileName is the conventional export file name for the given day.
func FileName(t time.Time) string {
	return "historial-bitacora-" + t.UTC().Format(domain.DateLayout) + ".csv"
}

// Marshal renders rows as CSV: the header line followed by one line per
// movement, joined by "\n" with no trailing newline.
func Marshal(rows []domain.Movement) string {
	var b strings.Builder
	b.WriteString(strings.Join(Columns, ","))
	for _, m := range rows {
		b.WriteByte('\n')
		for i, f := range fields(m) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escape(f))
		}
	}
	return b.String()
}

// Write writes Marshal(rows) to w.
func Write(w io.Writer, rows []domain.Movement) error {
	_, err := io.WriteString(w, Marshal(rows))
	return err
}

func fields(m domain.Movement) []string {
	return []string{
		m.EventDate.UTC().Format(time.RFC3339Nano),
		m.Ticker,
		string(m.Strategy),
		strconv.Itoa(m.Contracts),
		m.Strike.String(),
		nullDecimal(m.OpeningPrice),
		nullDecimal(m.CurrentPrice),
		m.Premium.String(),
		m.Commission.String(),
		m.ClosingCost.String(),
		dateOrEmpty(m.StartDate),
		nullDate(m.ExpirationDate),
		nullDate(m.CloseDate),
		string(m.Status),
		string(m.MovementType),
		m.ChainID,
		strconv.FormatBool(m.IsCurrent),
		nullString(m.Note),
	}
}

func escape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func nullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func dateOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(domain.DateLayout)
}

func nullDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return dateOrEmpty(*t)
}

func nullString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Parse reads CSV produced by Marshal, or any CSV whose header contains
// every column of Columns in any order and case. Blank lines and rows with
// fewer cells than Columns are skipped. The header is the only thing that can
// be rejected: cells that are empty or do not parse take the import defaults
// (one contract, zero money, null prices and dates, a fresh chain id). Other
// defaults (status, dates) are applied by the importer.
func Parse(r io.Reader) ([]domain.Movement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvcodec: read: %w", err)
	}
	records = dropBlank(records)
	if len(records) == 0 {
		return nil, domain.Invalid("header", "missing header row")
	}

	index, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}

	out := make([]domain.Movement, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < len(Columns) {
			continue
		}
		out = append(out, parseRecord(rec, index))
	}
	return out, nil
}

func dropBlank(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		for _, c := range rec {
			if c != "" {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		col := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}
	var missing []string
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, domain.Invalid("header", "missing columns: "+strings.Join(missing, ", "))
	}
	return index, nil
}

type record struct {
	cells []string
	index map[string]int
}

func (r record) raw(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return r.cells[i]
}

func (r record) get(col string) string {
	return strings.TrimSpace(r.raw(col))
}

func parseRecord(cells []string, index map[string]int) domain.Movement {
	r := record{cells: cells, index: index}
	m := domain.Movement{
		Ticker:         r.get(domain.ColTicker),
		Strategy:       domain.Strategy(r.get(domain.ColStrategy)),
		Status:         domain.Status(r.get(domain.ColStatus)),
		MovementType:   domain.MovementType(r.get(domain.ColMovementType)),
		ChainID:        r.get(domain.ColChainID),
		IsCurrent:      strings.EqualFold(r.get(domain.ColIsCurrent), "true"),
		Contracts:      contracts(r.get(domain.ColContracts)),
		Strike:         ledger.ParseDecimal(r.get(domain.ColStrike)),
		Premium:        ledger.ParseDecimal(r.get(domain.ColPremium)),
		Commission:     ledger.ParseDecimal(r.get(domain.ColCommission)),
		ClosingCost:    ledger.ParseDecimal(r.get(domain.ColClosingCost)),
		OpeningPrice:   optionalMoney(r.get(domain.ColOpeningPrice)),
		CurrentPrice:   optionalMoney(r.get(domain.ColCurrentPrice)),
		ExpirationDate: optionalDate(r.get(domain.ColExpirationDate)),
		CloseDate:      optionalDate(r.get(domain.ColCloseDate)),
	}
	if m.ChainID == "" {
		m.ChainID = uuid.NewString()
	}
	if v := r.raw(domain.ColNote); v != "" {
		m.Note = &v
	}
	// Zero times are filled in by the importer.
	if t, ok := ledger.ParseTime(r.get(domain.ColEventDate)); ok {
		m.EventDate = t
	}
	if t, ok := ledger.ParseDate(r.get(domain.ColStartDate)); ok {
		m.StartDate = t
	}
	return m
}

// contracts reads a leading integer like parseInt, so "2.5" is 2. Anything
// else is one contract.
func contracts(v string) int {
	end := 0
	for end < len(v) && (v[end] >= '0' && v[end] <= '9' || end == 0 && (v[0] == '-' || v[0] == '+')) {
		end++
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 1
	}
	return n
}

// optionalMoney is null for an empty cell or one that is not a finite number.
func optionalMoney(v string) decimal.NullDecimal {
	if v == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func optionalDate(v string) *time.Time {
	t, ok := ledger.ParseDate(v)
	if !ok {
		return nil
	}
	return &t
}
