// Package ledger persists items, accounts and transactions. It is the only
// component that mutates them.
package ledger

import (
	"context"
	"fmt"

	"github.com/morsecodescott/budget-tracker-app-sub000/internal/category"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"gorm.io/gorm"
)

// Store provides idempotent operations on the ledger. All writes are keyed
// by the external ids that Plaid assigns.
type Store struct {
	db     *gorm.DB
	mapper *category.Mapper
}

// New creates a Store. mapper may be nil, transactions are stored
// unmapped then.
func New(db *gorm.DB, mapper *category.Mapper) *Store {
	return &Store{db: db, mapper: mapper}
}

// InTransaction runs fn against a Store bound to a database transaction.
// The transaction is committed if fn returns nil and rolled back otherwise.
func (s *Store) InTransaction(ctx context.Context, fn func(*Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := &Store{db: tx}
		if s.mapper != nil {
			txStore.mapper = s.mapper.WithDB(tx)
		}

		return fn(txStore)
	})
}

// Ping verifies that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", models.ErrGeneral, err)
	}
	return nil
}
