package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryMapping maps a Plaid personal finance category onto a Category.
//
// The detailed label is the lookup key. It may contain '*' wildcards,
// e.g. "FOOD_AND_DRINK_*".
type CategoryMapping struct {
	DefaultModel
	Primary    string    `json:"primary" example:"FOOD_AND_DRINK"`
	Detailed   string    `json:"detailed" gorm:"uniqueIndex:idx_mapping_detailed;not null" example:"FOOD_AND_DRINK_GROCERIES"`
	CategoryID uuid.UUID `json:"categoryId" gorm:"type:char(36);not null"`
	Category   Category  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

func (m *CategoryMapping) BeforeSave(_ *gorm.DB) error {
	m.Primary = strings.ToUpper(strings.TrimSpace(m.Primary))
	m.Detailed = strings.ToUpper(strings.TrimSpace(m.Detailed))
	return nil
}
