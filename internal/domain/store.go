package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Row is a loosely typed ledger row keyed by column name, as returned by a
// store. Use ledger.Normalize to turn it into a Movement.
type Row map[string]any

// Patch maps column names to their new values in a conditional update.
type Patch map[string]any

// Predicate is an equality test on one column.
type Predicate struct {
	Column string
	Value  any
}

// Order sorts results by one column.
type Order struct {
	Column string
	Desc   bool
}

// Filter is a conjunction of equality predicates plus ordering and paging.
type Filter struct {
	Where   []Predicate
	OrderBy []Order
	Limit   int
	Offset  int
}

// Where starts a filter with a single equality predicate.
func Where(column string, value any) Filter {
	return Filter{Where: []Predicate{{Column: column, Value: value}}}
}

// And returns f with an additional equality predicate.
func (f Filter) And(column string, value any) Filter {
	where := make([]Predicate, len(f.Where), len(f.Where)+1)
	copy(where, f.Where)
	f.Where = append(where, Predicate{Column: column, Value: value})
	return f
}

// Sort returns f with an additional ordering term.
func (f Filter) Sort(column string, desc bool) Filter {
	order := make([]Order, len(f.OrderBy), len(f.OrderBy)+1)
	copy(order, f.OrderBy)
	f.OrderBy = append(order, Order{Column: column, Desc: desc})
	return f
}

// MovementStore persists ledger movements. Update is a compare-and-set: it
// applies patch only to rows matching every predicate of the filter and
// reports ok=false when no row matched.
type MovementStore interface {
	Select(ctx context.Context, f Filter) ([]Row, error)
	Update(ctx context.Context, f Filter, patch Patch) (row Row, ok bool, err error)
	Insert(ctx context.Context, rows []Row) ([]Row, error)
}

// TxStore is implemented by stores that can run several calls atomically.
type TxStore interface {
	MovementStore
	InTx(ctx context.Context, fn func(tx MovementStore) error) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
