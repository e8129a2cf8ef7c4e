package models

import "github.com/google/uuid"

// Category is a node of the internal category taxonomy.
//
// Categories are managed by the surrounding application, this service
// only reads them through CategoryMappings.
type Category struct {
	DefaultModel
	Name     string     `json:"name" example:"Groceries"`
	ParentID *uuid.UUID `json:"parentId" gorm:"type:char(36)"`
	UserID   string     `json:"userId" gorm:"index"` // Empty for default categories
}

// Default reports whether the category is part of the default taxonomy.
func (c Category) Default() bool {
	return c.UserID == ""
}
