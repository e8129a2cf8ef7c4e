package models

import (
	"strings"

	"gorm.io/gorm"
)

// ItemStatus is the health of the connection to an institution.
type ItemStatus string

const (
	ItemStatusGood ItemStatus = "good"
	ItemStatusBad  ItemStatus = "bad" // The user needs to re-authenticate with the institution
)

// Item is a single linked institution connection. It owns one access
// token and one transactions sync cursor.
type Item struct {
	DefaultModel
	ExternalID      string     `json:"itemId" gorm:"uniqueIndex:idx_item_external_id;not null" example:"eVBnVMp7zdTJLkRNr33Rs6zr7KNJqBFL9DrE6"` // Plaid item_id
	UserID          string     `json:"userId" gorm:"index;not null" example:"user-1"`                                                           // Owner of the connection
	AccessToken     string     `json:"-" gorm:"not null"`                                                                                       // Plaid access token, never serialized
	InstitutionID   string     `json:"institutionId" example:"ins_109508"`
	InstitutionName string     `json:"institutionName" example:"First Platypus Bank"`
	Cursor          *string    `json:"-"` // nil means a full resync on the next run
	Status          ItemStatus `json:"status" gorm:"default:good" example:"good"`
	Active          bool       `json:"active" example:"true"`
	Accounts        []Account  `json:"accounts,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// BeforeSave trims whitespace and defaults the status.
func (i *Item) BeforeSave(_ *gorm.DB) error {
	i.InstitutionName = strings.TrimSpace(i.InstitutionName)

	if i.Status == "" {
		i.Status = ItemStatusGood
	}

	return nil
}
