package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionInput is the current state of a transaction as reported by
// Plaid. Added and modified transactions are handled identically.
type TransactionInput struct {
	ExternalID         string
	AccountExternalID  string
	Amount             decimal.Decimal
	Date               time.Time
	Name               string
	MerchantName       string
	Pending            bool
	CurrencyCode       string
	CategoryPrimary    string
	CategoryDetailed   string
	CategoryConfidence string
}

// UpsertResult counts what UpsertTransactions did.
type UpsertResult struct {
	Created int
	Updated int
	Skipped int // Transactions without an id or whose account is unknown
}

// TransactionFilter selects the transactions of a user.
type TransactionFilter struct {
	UserID    string
	ItemID    uuid.UUID
	AccountID uuid.UUID
	Offset    int
	Limit     int // Values < 1 disable the limit
}

func (f TransactionFilter) scope(db *gorm.DB) *gorm.DB {
	db = db.
		Joins("JOIN accounts ON accounts.id = transactions.account_id").
		Joins("JOIN items ON items.id = accounts.item_id").
		Where("items.user_id = ?", f.UserID)

	if f.ItemID != uuid.Nil {
		db = db.Where("items.id = ?", f.ItemID)
	}

	if f.AccountID != uuid.Nil {
		db = db.Where("transactions.account_id = ?", f.AccountID)
	}

	return db
}

// UpsertTransactions updates or creates transactions of the item, keyed by
// their external id.
//
// A transaction without an external id or referencing an account that does
// not belong to the item is skipped, the rest of the batch is stored.
func (s *Store) UpsertTransactions(ctx context.Context, itemID uuid.UUID, inputs []TransactionInput) (UpsertResult, error) {
	var result UpsertResult

	accounts, err := s.AccountsForItem(ctx, itemID)
	if err != nil {
		return result, err
	}

	accountIDs := make(map[string]uuid.UUID, len(accounts))
	for _, a := range accounts {
		accountIDs[a.ExternalID] = a.ID
	}

	db := s.db.WithContext(ctx)
	for _, input := range inputs {
		if input.ExternalID == "" {
			log.Warn().Str("account", input.AccountExternalID).Msg("skipping transaction without id")
			result.Skipped++
			continue
		}

		accountID, ok := accountIDs[input.AccountExternalID]
		if !ok {
			log.Warn().Str("transaction", input.ExternalID).Str("account", input.AccountExternalID).Msg("skipping transaction for unknown account")
			result.Skipped++
			continue
		}

		var categoryID *uuid.UUID
		if s.mapper != nil {
			categoryID = s.mapper.Resolve(ctx, input.CategoryPrimary, input.CategoryDetailed)
		}

		var transaction models.Transaction
		err := db.Where("external_id = ?", input.ExternalID).First(&transaction).Error

		created := false
		switch {
		case err == nil:
		case errors.Is(err, models.ErrResourceNotFound):
			transaction = models.Transaction{ExternalID: input.ExternalID}
			created = true
		default:
			return result, err
		}

		transaction.AccountID = accountID
		transaction.Amount = input.Amount
		transaction.Date = input.Date
		transaction.Name = input.Name
		transaction.MerchantName = input.MerchantName
		transaction.Pending = input.Pending
		transaction.CurrencyCode = NormalizeCurrency(input.CurrencyCode)
		transaction.CategoryPrimary = input.CategoryPrimary
		transaction.CategoryDetailed = input.CategoryDetailed
		transaction.CategoryConfidence = input.CategoryConfidence
		transaction.CategoryID = categoryID

		if created {
			err = db.Create(&transaction).Error
			result.Created++
		} else {
			err = db.Save(&transaction).Error
			result.Updated++
		}

		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// DeleteTransactions deletes the transactions with the external ids.
// Unknown ids are ignored.
func (s *Store) DeleteTransactions(ctx context.Context, externalIDs []string) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}

	tx := s.db.WithContext(ctx).Where("external_id IN ?", externalIDs).Delete(&models.Transaction{})
	return tx.RowsAffected, tx.Error
}

// Transactions returns the transactions matching the filter, newest first,
// and the total number of matches.
func (s *Store) Transactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).Scopes(filter.scope).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit < 1 {
		limit = -1
	}

	var transactions []models.Transaction
	err = s.db.WithContext(ctx).
		Scopes(filter.scope).
		Order("transactions.date DESC, transactions.created_at DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&transactions).Error

	return transactions, total, err
}
