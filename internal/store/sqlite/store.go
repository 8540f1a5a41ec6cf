// Package sqlite is an embedded, single-file ledger store built on gorm. It
// needs no server, which suits local use and the CLI.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

var columns = map[string]bool{
	domain.ColID: true, domain.ColEventDate: true, domain.ColTicker: true,
	domain.ColStrategy: true, domain.ColContracts: true, domain.ColStrike: true,
	domain.ColOpeningPrice: true, domain.ColCurrentPrice: true, domain.ColPremium: true,
	domain.ColCommission: true, domain.ColClosingCost: true, domain.ColStartDate: true,
	domain.ColExpirationDate: true, domain.ColCloseDate: true, domain.ColStatus: true,
	domain.ColMovementType: true, domain.ColChainID: true, domain.ColIsCurrent: true,
	domain.ColNote: true,
}

// Store implements domain.TxStore on a SQLite file.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at path and migrates the
// schema. Use ":memory:" for a throwaway ledger.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&movementRecord{}, &auditRecord{}); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the gorm handle, for the audit store.
func (s *Store) DB() *gorm.DB { return s.db }

// Ping checks the database handle is usable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func scope(db *gorm.DB, preds []domain.Predicate) (*gorm.DB, error) {
	for _, p := range preds {
		if !columns[p.Column] {
			return nil, fmt.Errorf("sqlite: unknown column %q", p.Column)
		}
		if p.Value == nil {
			db = db.Where(p.Column + " IS NULL")
			continue
		}
		db = db.Where(p.Column+" = ?", p.Value)
	}
	return db, nil
}

// Select returns the rows matching f.
func (s *Store) Select(ctx context.Context, f domain.Filter) ([]domain.Row, error) {
	q, err := scope(s.db.WithContext(ctx).Model(&movementRecord{}), f.Where)
	if err != nil {
		return nil, err
	}
	for _, o := range f.OrderBy {
		if !columns[o.Column] {
			return nil, fmt.Errorf("sqlite: unknown column %q", o.Column)
		}
		if o.Desc {
			q = q.Order(o.Column + " DESC")
		} else {
			q = q.Order(o.Column + " ASC")
		}
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var recs []movementRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("sqlite: select movements: %w", err)
	}
	out := make([]domain.Row, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.row())
	}
	return out, nil
}

// Update applies patch to the first row matching f. The match and the write
// happen in one transaction so the predicate still holds when the row is
// written.
func (s *Store) Update(ctx context.Context, f domain.Filter, patch domain.Patch) (domain.Row, bool, error) {
	if len(patch) == 0 || len(f.Where) == 0 {
		return nil, false, errors.New("sqlite: update needs a predicate and a patch")
	}
	values := make(map[string]any, len(patch))
	for col, v := range patch {
		if !columns[col] || col == domain.ColID {
			return nil, false, fmt.Errorf("sqlite: column %q cannot be updated", col)
		}
		values[col] = v
	}

	var (
		updated movementRecord
		ok      bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := scope(tx.Model(&movementRecord{}), f.Where)
		if err != nil {
			return err
		}
		var target movementRecord
		res := q.Order(domain.ColID).Limit(1).Find(&target)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		q, _ = scope(tx.Model(&movementRecord{}).Where(domain.ColID+" = ?", target.ID), f.Where)
		res = q.Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		ok = true
		return tx.First(&updated, target.ID).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: update movement: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return updated.row(), true, nil
}

// Insert writes rows in one transaction and returns them with their ids.
func (s *Store) Insert(ctx context.Context, rows []domain.Row) ([]domain.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	recs := make([]movementRecord, 0, len(rows))
	for _, r := range rows {
		rec := recordFromRow(r)
		rec.ID = 0
		recs = append(recs, rec)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&recs, 200).Error; err != nil {
		return nil, fmt.Errorf("sqlite: insert %d movements: %w", len(rows), err)
	}
	out := make([]domain.Row, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.row())
	}
	return out, nil
}

// InTx runs fn in a transaction, rolled back if fn fails.
func (s *Store) InTx(ctx context.Context, fn func(domain.MovementStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}
