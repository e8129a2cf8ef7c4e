package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
	"github.com/rs/zerolog/log"
)

// CreateItem persists a newly linked item.
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	return s.db.WithContext(ctx).Create(item).Error
}

// ItemByExternalID returns the item with the Plaid item_id.
func (s *Store) ItemByExternalID(ctx context.Context, externalID string) (models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&item).Error
	return item, err
}

// ItemsForUser returns all items of the user with their accounts.
func (s *Store) ItemsForUser(ctx context.Context, userID string) ([]models.Item, error) {
	var items []models.Item
	err := s.db.WithContext(ctx).
		Preload("Accounts").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error

	return items, err
}

// ItemForUser returns the item with the ID if it belongs to the user.
func (s *Store) ItemForUser(ctx context.Context, userID string, id uuid.UUID) (models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).
		Preload("Accounts").
		Where("user_id = ?", userID).
		First(&item, "id = ?", id).Error

	return item, err
}

// SetCursor stores the sync cursor of the item.
func (s *Store) SetCursor(ctx context.Context, externalItemID, cursor string) error {
	item, err := s.ItemByExternalID(ctx, externalItemID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(&item).Update("cursor", cursor).Error
}

// SetItemStatus transitions the status of the item.
func (s *Store) SetItemStatus(ctx context.Context, externalItemID string, status models.ItemStatus) error {
	if status != models.ItemStatusGood && status != models.ItemStatusBad {
		return fmt.Errorf("invalid item status '%s'", status)
	}

	item, err := s.ItemByExternalID(ctx, externalItemID)
	if err != nil {
		return err
	}

	if item.Status == status {
		return nil
	}

	log.Info().Str("item", externalItemID).Str("from", string(item.Status)).Str("to", string(status)).Msg("item status changed")
	return s.db.WithContext(ctx).Model(&item).Update("status", status).Error
}

// DeleteItem deletes the item with all of its accounts and their
// transactions.
func (s *Store) DeleteItem(ctx context.Context, externalItemID string) error {
	return s.InTransaction(ctx, func(tx *Store) error {
		item, err := tx.ItemByExternalID(ctx, externalItemID)
		if err != nil {
			return err
		}

		accounts := tx.db.Model(&models.Account{}).Select("id").Where("item_id = ?", item.ID)

		err = tx.db.Where("account_id IN (?)", accounts).Delete(&models.Transaction{}).Error
		if err != nil {
			return err
		}

		err = tx.db.Where("item_id = ?", item.ID).Delete(&models.Account{}).Error
		if err != nil {
			return err
		}

		return tx.db.Delete(&item).Error
	})
}
