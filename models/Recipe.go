package models

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecipeImageDir is the storage prefix for uploaded recipe images.
const RecipeImageDir = "upload/recipe"

// NewImageID generates the identifier used as an uploaded image's file name.
// Tests replace it to get stable paths.
var NewImageID = func() string {
	return uuid.NewString()
}

// Recipe is a user's recipe together with the tags and ingredients it uses.
type Recipe struct {
	ID          uint         `gorm:"primaryKey"`
	Title       string       `gorm:"type:varchar(255);not null"`
	TimeMinutes int          `gorm:"column:time_minute;not null"`
	Price       float64      `gorm:"type:decimal(5,2);not null"`
	Link        string       `gorm:"type:varchar(255)"`
	Image       string       `gorm:"type:varchar(255)"`
	UserID      uint         `gorm:"not null;index"`
	User        *User        `gorm:"foreignKey:UserID"`
	Tags        []Tag        `gorm:"many2many:recipe_tags"`
	Ingredients []Ingredient `gorm:"many2many:recipe_ingredients"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r Recipe) String() string {
	return r.Title
}

// TagIDs returns the primary keys of the loaded tags.
func (r Recipe) TagIDs() []uint {
	ids := make([]uint, 0, len(r.Tags))
	for _, tag := range r.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// IngredientIDs returns the primary keys of the loaded ingredients.
func (r Recipe) IngredientIDs() []uint {
	ids := make([]uint, 0, len(r.Ingredients))
	for _, ingredient := range r.Ingredients {
		ids = append(ids, ingredient.ID)
	}
	return ids
}

// RecipeImageFilePath derives the storage path for an uploaded image. Only the
// extension of filename survives; the base name is a fresh identifier.
func RecipeImageFilePath(filename string) string {
	name := NewImageID()
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		name += "." + filename[idx+1:]
	}
	return path.Join(RecipeImageDir, name)
}
