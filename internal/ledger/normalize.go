// Package ledger holds the pure core of the options ledger: row
// normalization, per-movement financial figures, portfolio aggregation, and
// history queries. Nothing in this package touches a store.
package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

// Normalize converts a loosely typed store row into a Movement. It never
// fails: unparsable numbers become zero and absent nullable fields stay null.
func Normalize(row domain.Row) domain.Movement {
	return domain.Movement{
		ID:             toInt64(row[domain.ColID]),
		ChainID:        toString(row[domain.ColChainID]),
		Ticker:         toString(row[domain.ColTicker]),
		Strategy:       domain.Strategy(toString(row[domain.ColStrategy])),
		Contracts:      int(toInt64(row[domain.ColContracts])),
		Strike:         toDecimal(row[domain.ColStrike]),
		OpeningPrice:   toNullDecimal(row[domain.ColOpeningPrice]),
		CurrentPrice:   toNullDecimal(row[domain.ColCurrentPrice]),
		Premium:        toDecimal(row[domain.ColPremium]),
		Commission:     toDecimal(row[domain.ColCommission]),
		ClosingCost:    toDecimal(row[domain.ColClosingCost]),
		StartDate:      toDate(row[domain.ColStartDate]),
		ExpirationDate: toNullDate(row[domain.ColExpirationDate]),
		CloseDate:      toNullDate(row[domain.ColCloseDate]),
		EventDate:      toTime(row[domain.ColEventDate]),
		Status:         domain.Status(toString(row[domain.ColStatus])),
		MovementType:   domain.MovementType(toString(row[domain.ColMovementType])),
		IsCurrent:      toBool(row[domain.ColIsCurrent]),
		Note:           toNullString(row[domain.ColNote]),
	}
}

// NormalizeAll applies Normalize to every row.
func NormalizeAll(rows []domain.Row) []domain.Movement {
	out := make([]domain.Movement, 0, len(rows))
	for _, r := range rows {
		out = append(out, Normalize(r))
	}
	return out
}

// ParseDecimal parses a numeric string, returning zero when s is not a
// finite number.
func ParseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// ParseDate parses a civil date or timestamp and truncates it to the UTC day.
// ok is false when s matches no known layout.
func ParseDate(s string) (time.Time, bool) {
	t, ok := ParseTime(s)
	if !ok {
		return time.Time{}, false
	}
	return truncateDay(t), true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	domain.DateLayout,
}

// ParseTime parses the timestamp formats emitted by the supported stores and
// by CSV exports.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// unwrap resolves driver.Valuer implementations (pgtype.Numeric and friends)
// down to their primitive value.
func unwrap(v any) any {
	for i := 0; i < 4; i++ {
		switch v.(type) {
		case decimal.Decimal, decimal.NullDecimal, time.Time:
			return v
		}
		valuer, ok := v.(driver.Valuer)
		if !ok {
			return v
		}
		next, err := valuer.Value()
		if err != nil {
			return nil
		}
		v = next
	}
	return v
}

func toString(v any) string {
	switch x := unwrap(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		return x.String()
	case json.Number:
		return x.String()
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func toNullString(v any) *string {
	if unwrap(v) == nil {
		return nil
	}
	s := toString(v)
	if s == "" {
		return nil
	}
	return &s
}

func toDecimal(v any) decimal.Decimal {
	switch x := unwrap(v).(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case decimal.NullDecimal:
		if !x.Valid {
			return decimal.Zero
		}
		return x.Decimal
	case string:
		return ParseDecimal(x)
	case []byte:
		return ParseDecimal(string(x))
	case json.Number:
		return ParseDecimal(x.String())
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(x)
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat32(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int8:
		return decimal.NewFromInt(int64(x))
	case int16:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case uint:
		return ParseDecimal(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return decimal.NewFromInt(int64(x))
	case uint16:
		return decimal.NewFromInt(int64(x))
	case uint32:
		return decimal.NewFromInt(int64(x))
	case uint64:
		return ParseDecimal(strconv.FormatUint(x, 10))
	default:
		return decimal.Zero
	}
}

func toNullDecimal(v any) decimal.NullDecimal {
	switch x := unwrap(v).(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.NullDecimal:
		return x
	case string:
		if strings.TrimSpace(x) == "" {
			return decimal.NullDecimal{}
		}
	case []byte:
		if strings.TrimSpace(string(x)) == "" {
			return decimal.NullDecimal{}
		}
	}
	return decimal.NewNullDecimal(toDecimal(v))
}

func toInt64(v any) int64 {
	switch x := unwrap(v).(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n
		}
	}
	return toDecimal(v).IntPart()
}

func toBool(v any) bool {
	switch x := unwrap(v).(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "1":
			return true
		}
		return false
	case []byte:
		return toBool(string(x))
	case nil:
		return false
	default:
		return !toDecimal(x).IsZero()
	}
}

func toTime(v any) time.Time {
	switch x := unwrap(v).(type) {
	case time.Time:
		return x.UTC()
	case string:
		t, _ := ParseTime(x)
		return t
	case []byte:
		t, _ := ParseTime(string(x))
		return t
	}
	return time.Time{}
}

func toDate(v any) time.Time {
	t := toTime(v)
	if t.IsZero() {
		return t
	}
	return truncateDay(t)
}

func toNullDate(v any) *time.Time {
	t := toDate(v)
	if t.IsZero() {
		return nil
	}
	return &t
}
