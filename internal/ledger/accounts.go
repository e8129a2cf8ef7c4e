package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AccountInput is the current state of an account as reported by Plaid.
type AccountInput struct {
	ExternalID       string
	Name             string
	OfficialName     string
	Mask             string
	Type             string
	Subtype          string
	AvailableBalance decimal.NullDecimal
	CurrentBalance   decimal.NullDecimal
	CreditLimit      decimal.NullDecimal
	CurrencyCode     string
}

func (a AccountInput) apply(account *models.Account) {
	account.Name = a.Name
	account.OfficialName = a.OfficialName
	account.Mask = a.Mask
	account.Type = a.Type
	account.Subtype = a.Subtype
	account.AvailableBalance = a.AvailableBalance
	account.CurrentBalance = a.CurrentBalance
	account.CreditLimit = a.CreditLimit
	account.CurrencyCode = NormalizeCurrency(a.CurrencyCode)
}

// UpsertAccounts updates or creates the accounts of the item, keyed by
// their external id. It returns the persisted accounts in input order.
// Accounts without an external id are skipped.
func (s *Store) UpsertAccounts(ctx context.Context, itemID uuid.UUID, inputs []AccountInput) ([]models.Account, error) {
	db := s.db.WithContext(ctx)

	err := db.First(&models.Item{}, "id = ?", itemID).Error
	if err != nil {
		return nil, err
	}

	accounts := make([]models.Account, 0, len(inputs))
	for _, input := range inputs {
		if input.ExternalID == "" {
			log.Warn().Str("item", itemID.String()).Str("name", input.Name).Msg("skipping account without id")
			continue
		}

		var account models.Account
		err := db.Where("item_id = ? AND external_id = ?", itemID, input.ExternalID).First(&account).Error

		switch {
		case err == nil:
			input.apply(&account)
			err = db.Save(&account).Error
		case errors.Is(err, models.ErrResourceNotFound):
			account = models.Account{ItemID: itemID, ExternalID: input.ExternalID}
			input.apply(&account)
			err = db.Create(&account).Error
		}

		if err != nil {
			return nil, err
		}

		accounts = append(accounts, account)
	}

	return accounts, nil
}

// AccountsForItem returns all accounts of the item.
func (s *Store) AccountsForItem(ctx context.Context, itemID uuid.UUID) ([]models.Account, error) {
	var accounts []models.Account
	err := s.db.WithContext(ctx).Where("item_id = ?", itemID).Order("name ASC").Find(&accounts).Error
	return accounts, err
}
