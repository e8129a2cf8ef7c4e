package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is a single transaction reported by Plaid for an Account.
//
// Amounts use Plaid's sign convention: money leaving the account is
// positive, money coming in is negative.
type Transaction struct {
	DefaultModel
	ExternalID         string          `json:"transactionId" gorm:"uniqueIndex:idx_transaction_external_id;not null" example:"lPNjeW1nR6CDn5okmGQ6hEpMo4lLNoSrzqDje"` // Plaid transaction_id
	AccountID          uuid.UUID       `json:"accountId" gorm:"type:char(36);index;not null"`
	Account            Account         `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Amount             decimal.Decimal `json:"amount" gorm:"type:DECIMAL(20,8)" example:"12.74"`
	Date               time.Time       `json:"date" example:"2024-03-01T00:00:00Z"`
	Name               string          `json:"name" example:"Uber 063015 SF**POOL**"`
	MerchantName       string          `json:"merchantName" example:"Uber"`
	Pending            bool            `json:"pending" example:"false"`
	CurrencyCode       string          `json:"currencyCode" example:"USD"`
	CategoryPrimary    string          `json:"categoryPrimary" example:"TRANSPORTATION"`
	CategoryDetailed   string          `json:"categoryDetailed" example:"TRANSPORTATION_TAXIS_AND_RIDE_SHARES"`
	CategoryConfidence string          `json:"categoryConfidence" example:"VERY_HIGH"`
	CategoryID         *uuid.UUID      `json:"categoryId" gorm:"type:char(36);index"` // nil when the Plaid category is not mapped
}

// AfterFind enforces dates to be in UTC.
func (t *Transaction) AfterFind(tx *gorm.DB) (err error) {
	err = t.DefaultModel.AfterFind(tx)
	if err != nil {
		return err
	}

	t.Date = t.Date.In(time.UTC)
	return
}

// BeforeSave
//   - sets the timezone for the Date to UTC
//   - trims whitespace from string fields
//   - ensures that an unmapped category is stored as NULL
func (t *Transaction) BeforeSave(_ *gorm.DB) (err error) {
	t.Name = strings.TrimSpace(t.Name)
	t.MerchantName = strings.TrimSpace(t.MerchantName)

	if t.CategoryID != nil && *t.CategoryID == uuid.Nil {
		t.CategoryID = nil
	}

	t.Date = t.Date.In(time.UTC)
	return
}
