package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

// MovementTable is the ledger table.
const MovementTable = "historial_operaciones"

// insertColumns are written on insert; id is assigned by the database.
var insertColumns = []string{
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

var knownColumns = func() map[string]bool {
	m := map[string]bool{domain.ColID: true}
	for _, c := range insertColumns {
		m[c] = true
	}
	return m
}()

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// MovementStore implements domain.TxStore on the ledger table.
type MovementStore struct {
	pool *pgxpool.Pool
	db   querier
}

// NewMovementStore creates a new MovementStore backed by the given connection pool.
func NewMovementStore(pool *pgxpool.Pool) *MovementStore {
	return &MovementStore{pool: pool, db: pool}
}

// Select returns the rows matching f.
func (s *MovementStore) Select(ctx context.Context, f domain.Filter) ([]domain.Row, error) {
	query, args, err := buildSelect(f)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: select movements: %w", err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan movements: %w", err)
	}
	return out, nil
}

// Update applies patch to the row matching every predicate of f and returns
// it. ok is false when no row matched.
func (s *MovementStore) Update(ctx context.Context, f domain.Filter, patch domain.Patch) (domain.Row, bool, error) {
	query, args, err := buildUpdate(f, patch)
	if err != nil {
		return nil, false, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: update movement: %w", err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: update movement: %w", err)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out[0], true, nil
}

// maxParams is the PostgreSQL limit on bind parameters per statement.
const maxParams = 65535

// Insert writes rows and returns them as stored. Batches too large for one
// statement are split across statements in a single transaction.
func (s *MovementStore) Insert(ctx context.Context, rows []domain.Row) ([]domain.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	batch := maxParams / len(insertColumns)
	if len(rows) <= batch {
		return s.insert(ctx, rows)
	}

	var out []domain.Row
	err := s.InTx(ctx, func(tx domain.MovementStore) error {
		txs := tx.(*MovementStore)
		for start := 0; start < len(rows); start += batch {
			end := min(start+batch, len(rows))
			stored, err := txs.insert(ctx, rows[start:end])
			if err != nil {
				return err
			}
			out = append(out, stored...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MovementStore) insert(ctx context.Context, rows []domain.Row) ([]domain.Row, error) {
	query, args := buildInsert(rows)
	res, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert %d movements: %w", len(rows), err)
	}
	out, err := collectRows(res)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert %d movements: %w", len(rows), err)
	}
	return out, nil
}

// InTx runs fn inside a transaction. fn's store shares the transaction; the
// transaction is committed only when fn returns nil.
func (s *MovementStore) InTx(ctx context.Context, fn func(domain.MovementStore) error) error {
	if _, nested := s.db.(pgx.Tx); nested {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&MovementStore{pool: s.pool, db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func collectRows(rows pgx.Rows) ([]domain.Row, error) {
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, domain.Row(m))
	}
	return out, nil
}

// ---------- statement builders ----------

func checkColumn(col string) error {
	if !knownColumns[col] {
		return fmt.Errorf("postgres: unknown column %q", col)
	}
	return nil
}

// args accumulates positional parameters.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func (a *args) where(preds []domain.Predicate) (string, error) {
	if len(preds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		if err := checkColumn(p.Column); err != nil {
			return "", err
		}
		if p.Value == nil {
			parts = append(parts, p.Column+" IS NULL")
			continue
		}
		parts = append(parts, p.Column+" = "+a.add(p.Value))
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func buildSelect(f domain.Filter) (string, []any, error) {
	var a args
	var b strings.Builder
	b.WriteString("SELECT * FROM " + MovementTable)

	where, err := a.where(f.Where)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(where)

	if len(f.OrderBy) > 0 {
		terms := make([]string, 0, len(f.OrderBy))
		for _, o := range f.OrderBy {
			if err := checkColumn(o.Column); err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms = append(terms, o.Column+" "+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + a.add(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + a.add(f.Offset))
	}
	return b.String(), a, nil
}

func buildUpdate(f domain.Filter, patch domain.Patch) (string, []any, error) {
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("postgres: empty patch")
	}
	if len(f.Where) == 0 {
		return "", nil, fmt.Errorf("postgres: update without predicate")
	}

	var a args
	// Stable column order keeps statements cacheable.
	sets := make([]string, 0, len(patch))
	for _, col := range insertColumns {
		v, ok := patch[col]
		if !ok {
			continue
		}
		sets = append(sets, col+" = "+a.add(v))
	}
	if len(sets) != len(patch) {
		for col := range patch {
			if err := checkColumn(col); err != nil {
				return "", nil, err
			}
		}
		return "", nil, fmt.Errorf("postgres: id cannot be updated")
	}

	where, err := a.where(f.Where)
	if err != nil {
		return "", nil, err
	}
	query := "UPDATE " + MovementTable + " SET " + strings.Join(sets, ", ") + where + " RETURNING *"
	return query, a, nil
}

func buildInsert(rows []domain.Row) (string, []any) {
	var a args
	tuples := make([]string, 0, len(rows))
	for _, r := range rows {
		ph := make([]string, 0, len(insertColumns))
		for _, col := range insertColumns {
			ph = append(ph, a.add(r[col]))
		}
		tuples = append(tuples, "("+strings.Join(ph, ", ")+")")
	}
	query := "INSERT INTO " + MovementTable + " (" + strings.Join(insertColumns, ", ") + ") VALUES " +
		strings.Join(tuples, ", ") + " RETURNING *"
	return query, a
}
