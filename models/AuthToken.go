package models

import "time"

// AuthToken persists the session payload behind an opaque API token.
type AuthToken struct {
	Token  string    `gorm:"primaryKey;type:varchar(64)"`
	Data   []byte    `gorm:"not null"`
	Expiry time.Time `gorm:"not null;index"`
}
