package db

import (
	"testing"

	"recipebox/internal/config"
	"recipebox/models"
)

func TestInitializeRequiresURL(t *testing.T) {
	t.Parallel()

	db, err := Initialize(config.DatabaseConfig{URL: ""})
	if err == nil {
		t.Fatal("expected error when database URL is empty")
	}
	if db != nil {
		t.Fatal("expected returned db handle to be nil on error")
	}
}

func TestAutoMigrateRejectsNilDatabase(t *testing.T) {
	t.Parallel()

	if err := AutoMigrate(nil); err == nil {
		t.Fatal("expected error when database handle is nil")
	}
}

func TestOpenSQLiteMigratesSchema(t *testing.T) {
	t.Parallel()

	database, err := OpenSQLite("file:dbtest?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			sqlDB.Close()
		}
	})

	for _, table := range []any{&models.User{}, &models.Tag{}, &models.Ingredient{}, &models.Recipe{}, &models.AuthToken{}} {
		if !database.Migrator().HasTable(table) {
			t.Fatalf("expected table for %T to exist", table)
		}
	}
	for _, joinTable := range []string{"recipe_tags", "recipe_ingredients"} {
		if !database.Migrator().HasTable(joinTable) {
			t.Fatalf("expected join table %s to exist", joinTable)
		}
	}
	if !database.Migrator().HasColumn(&models.Recipe{}, "time_minute") {
		t.Fatal("expected recipes.time_minute column")
	}
}

func TestConfigurePropagatesInitializationError(t *testing.T) {
	t.Parallel()

	if _, err := Configure(config.DatabaseConfig{}); err == nil {
		t.Fatal("expected configuration error when initialize fails")
	}
}

func TestMustConfigurePanicsOnError(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when configuration fails")
		}
	}()

	MustConfigure(config.DatabaseConfig{})
}
