package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

// AuditStore appends to and reads the audit_log table.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log records event. pgx encodes detail as JSONB; a nil map is stored as NULL.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, detail,
	); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}

// List returns the entries matching opts, newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, params := auditQuery(opts)
	rows, err := s.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query audit_log: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanAuditEntry)
	if err != nil {
		return nil, fmt.Errorf("postgres: read audit_log: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.CollectableRow) (domain.AuditEntry, error) {
	var e domain.AuditEntry
	err := row.Scan(&e.ID, &e.Event, &e.Detail, &e.CreatedAt)
	return e, err
}

// auditQuery renders opts as a parameterised SELECT. Since and Until are
// inclusive.
func auditQuery(opts domain.ListOpts) (string, []any) {
	var a args
	var sb strings.Builder
	sb.WriteString("SELECT id, event, detail, created_at FROM audit_log")

	sep := " WHERE "
	if opts.Since != nil {
		sb.WriteString(sep + "created_at >= " + a.add(*opts.Since))
		sep = " AND "
	}
	if opts.Until != nil {
		sb.WriteString(sep + "created_at <= " + a.add(*opts.Until))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	if opts.Limit > 0 {
		sb.WriteString(" LIMIT " + a.add(opts.Limit))
	}
	if opts.Offset > 0 {
		sb.WriteString(" OFFSET " + a.add(opts.Offset))
	}
	return sb.String(), a
}
