package mock

import (
	"context"

	"gorm.io/gorm"

	"recipebox/internal/db"
	applog "recipebox/internal/log"
	"recipebox/models"
)

// Seeded account credentials of the mock database.
const (
	DemoEmail     = "chef@recipebox.app"
	DemoPassword  = "kitchen123"
	AdminEmail    = "admin@recipebox.app"
	AdminPassword = "backoffice123"
)

// New returns an in-memory sqlite database seeded with representative kitchen data.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	database, err := db.OpenSQLite("file:recipebox-mock?mode=memory&cache=shared")
	if err != nil {
		return nil, err
	}

	if err := Seed(ctx, database); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return database, nil
}

// Seed inserts a demo user with tags, ingredients and recipes plus a staff
// account. It is a no-op when the demo user already exists.
func Seed(ctx context.Context, database *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	var existing int64
	if err := database.WithContext(ctx).Model(&models.User{}).Where("email = ?", DemoEmail).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		applog.Debug(ctx, "mock database already seeded")
		return nil
	}

	return database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chef := &models.User{Email: DemoEmail, Name: "Demo Chef", IsActive: true}
		if err := chef.SetPassword(DemoPassword); err != nil {
			return err
		}
		admin := &models.User{Email: AdminEmail, Name: "Back Office", IsActive: true, IsStaff: true, IsSuperuser: true}
		if err := admin.SetPassword(AdminPassword); err != nil {
			return err
		}
		for _, user := range []*models.User{chef, admin} {
			if err := tx.Create(user).Error; err != nil {
				return err
			}
		}

		vegan := models.Tag{Name: "Vegan", UserID: chef.ID}
		dessert := models.Tag{Name: "Dessert", UserID: chef.ID}
		quick := models.Tag{Name: "Quick", UserID: chef.ID}
		tags := []*models.Tag{&vegan, &dessert, &quick}
		for _, tag := range tags {
			if err := tx.Create(tag).Error; err != nil {
				return err
			}
		}

		kale := models.Ingredient{Name: "Kale", UserID: chef.ID}
		salt := models.Ingredient{Name: "Salt", UserID: chef.ID}
		cocoa := models.Ingredient{Name: "Cocoa", UserID: chef.ID}
		oats := models.Ingredient{Name: "Oats", UserID: chef.ID}
		ingredients := []*models.Ingredient{&kale, &salt, &cocoa, &oats}
		for _, ingredient := range ingredients {
			if err := tx.Create(ingredient).Error; err != nil {
				return err
			}
		}

		recipes := []models.Recipe{
			{
				Title:       "Crispy kale chips",
				TimeMinutes: 20,
				Price:       3.50,
				UserID:      chef.ID,
				Tags:        []models.Tag{vegan, quick},
				Ingredients: []models.Ingredient{kale, salt},
			},
			{
				Title:       "Cocoa overnight oats",
				TimeMinutes: 5,
				Price:       2.25,
				Link:        "https://recipebox.app/recipes/cocoa-oats",
				UserID:      chef.ID,
				Tags:        []models.Tag{dessert, vegan},
				Ingredients: []models.Ingredient{cocoa, oats, salt},
			},
		}
		for i := range recipes {
			if err := tx.Omit("Tags.*", "Ingredients.*").Create(&recipes[i]).Error; err != nil {
				return err
			}
		}

		applog.Debug(ctx, "mock database seeded", "users", 2, "recipes", len(recipes))
		return nil
	})
}
