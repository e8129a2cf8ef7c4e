package ledger

import (
	"context"
	"errors"

	"github.com/morsecodescott/budget-tracker-app-sub000/internal/models"
)

// RegisterDevice stores a push token for the user. A token that was
// registered before is moved to the user and reactivated.
func (s *Store) RegisterDevice(ctx context.Context, userID, token, platform string) (models.DeviceToken, error) {
	db := s.db.WithContext(ctx)

	var device models.DeviceToken
	err := db.Where("token = ?", token).First(&device).Error
	if err != nil && !errors.Is(err, models.ErrResourceNotFound) {
		return device, err
	}

	device.Token = token
	device.UserID = userID
	device.Platform = platform
	device.Active = true

	if err != nil {
		return device, db.Create(&device).Error
	}

	return device, db.Save(&device).Error
}

// DeviceTokens returns the active push tokens of the user.
func (s *Store) DeviceTokens(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := s.db.WithContext(ctx).
		Model(&models.DeviceToken{}).
		Where("user_id = ? AND active = ?", userID, true).
		Pluck("token", &tokens).Error

	return tokens, err
}

// DeactivateDevices marks push tokens as no longer deliverable.
func (s *Store) DeactivateDevices(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).
		Model(&models.DeviceToken{}).
		Where("token IN ?", tokens).
		Update("active", false).Error
}
