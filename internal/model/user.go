package model

import "time"

// User mirrors an identity known to the external identity provider or to
// Telegram. Exactly one of TelegramID and ExternalID is normally set.
type User struct {
	ID         uint    `gorm:"primaryKey"`
	TelegramID *int64  `gorm:"uniqueIndex"`
	ExternalID *string `gorm:"uniqueIndex"`
	Email      string
	FirstName  string
	LastName   string
	Username   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName returns the best human-readable name for u.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return u.Email
	}
}
