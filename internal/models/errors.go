package models

import (
	"errors"
)

var (
	ErrGeneral          = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound = errors.New("there is no")
	ErrItemNotUnique    = errors.New("this institution connection is already linked")
	ErrAccountNotUnique = errors.New("the account already exists for this item")
	ErrMappingNotUnique = errors.New("a category mapping for this detailed category already exists")
)
