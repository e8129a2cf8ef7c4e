package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is an account at the institution of an Item.
type Account struct {
	DefaultModel
	ItemID           uuid.UUID           `json:"itemId" gorm:"type:char(36);uniqueIndex:idx_account_item_external;not null"`
	ExternalID       string              `json:"accountId" gorm:"uniqueIndex:idx_account_item_external;not null" example:"BxBXxLj1m4HMXBm9WZZmCWVbPjX16EHwv99vp"` // Plaid account_id
	Name             string              `json:"name" example:"Plaid Checking"`
	OfficialName     string              `json:"officialName" example:"Plaid Gold Standard 0% Interest Checking"`
	Mask             string              `json:"mask" example:"0000"`
	Type             string              `json:"type" example:"depository"`
	Subtype          string              `json:"subtype" example:"checking"`
	AvailableBalance decimal.NullDecimal `json:"availableBalance" gorm:"type:DECIMAL(20,8)" example:"100.00"`
	CurrentBalance   decimal.NullDecimal `json:"currentBalance" gorm:"type:DECIMAL(20,8)" example:"110.00"`
	CreditLimit      decimal.NullDecimal `json:"creditLimit" gorm:"type:DECIMAL(20,8)"`
	CurrencyCode     string              `json:"currencyCode" example:"USD"`
	Transactions     []Transaction       `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}
