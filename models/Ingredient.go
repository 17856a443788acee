package models

import "time"

// Ingredient is a named component a user can attach to their recipes.
type Ingredient struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	UserID    uint      `gorm:"not null;index"`
	User      *User     `gorm:"foreignKey:UserID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i Ingredient) String() string {
	return i.Name
}
