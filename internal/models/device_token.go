package models

// DeviceToken is a Firebase Cloud Messaging registration token for one
// device of a user.
type DeviceToken struct {
	DefaultModel
	UserID   string `json:"-" gorm:"index;not null"`
	Token    string `json:"token" gorm:"uniqueIndex:idx_device_token;not null"`
	Platform string `json:"platform" example:"ios"`
	Active   bool   `json:"active" example:"true"`
}
