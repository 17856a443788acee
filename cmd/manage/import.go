package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"recipebox/models"
)

var cleanWhitespace = regexp.MustCompile(`\s+`)

func newImportRecipesCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "import-recipes <csv>",
		Short: "Import recipes with their tags and ingredients from a CSV file",
		Long: `Reads a CSV with the columns Title, Time Minutes, Price, Link, Tags and
Ingredients. Tags and ingredients are separated by commas or semicolons,
matched case-insensitively and created for the owner when missing. Recipes
are matched by title.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			csvPath := args[0]
			if _, err := os.Stat(csvPath); err != nil {
				return fmt.Errorf("locate csv: %w", err)
			}
			records, err := readCSV(csvPath)
			if err != nil {
				return fmt.Errorf("read csv: %w", err)
			}

			database, err := openDatabase()
			if err != nil {
				return err
			}
			ownerID, err := resolveImportOwner(database, owner)
			if err != nil {
				return fmt.Errorf("resolve owner: %w", err)
			}

			imported, err := importRecipes(database.WithContext(cmd.Context()), ownerID, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d recipes from %s\n", imported, filepath.Base(csvPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", os.Getenv("RECIPEBOX_IMPORT_OWNER_EMAIL"), "email of the user owning the imported recipes")
	return cmd
}

func importRecipes(database *gorm.DB, ownerID uint, records []map[string]string) (int, error) {
	imported := 0
	for idx, record := range records {
		recipe, err := buildRecipe(record)
		if err != nil {
			return imported, fmt.Errorf("record %d (%s): %w", idx+1, record["Title"], err)
		}
		recipe.UserID = ownerID

		if err := database.Transaction(func(tx *gorm.DB) error {
			tags, err := resolveTags(tx, ownerID, splitNames(record["Tags"]))
			if err != nil {
				return err
			}
			ingredients, err := resolveIngredients(tx, ownerID, splitNames(record["Ingredients"]))
			if err != nil {
				return err
			}

			var existing models.Recipe
			err = tx.Where("user_id = ? AND title = ?", ownerID, recipe.Title).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Omit("Tags", "Ingredients").Create(&recipe).Error; err != nil {
					return fmt.Errorf("create recipe %q: %w", recipe.Title, err)
				}
			case err != nil:
				return fmt.Errorf("find recipe %q: %w", recipe.Title, err)
			default:
				updates := map[string]any{
					"time_minute": recipe.TimeMinutes,
					"price":       recipe.Price,
					"link":        recipe.Link,
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return fmt.Errorf("update recipe %q: %w", recipe.Title, err)
				}
				recipe.ID = existing.ID
			}

			target := models.Recipe{ID: recipe.ID}
			if err := replaceOrClear(tx.Model(&target).Association("Tags"), tags); err != nil {
				return fmt.Errorf("assign tags to %q: %w", recipe.Title, err)
			}
			if err := replaceOrClear(tx.Model(&target).Association("Ingredients"), ingredients); err != nil {
				return fmt.Errorf("assign ingredients to %q: %w", recipe.Title, err)
			}
			return nil
		}); err != nil {
			return imported, fmt.Errorf("record %d (%s): %w", idx+1, record["Title"], err)
		}
		imported++
	}
	return imported, nil
}

func replaceOrClear[T any](association *gorm.Association, values []T) error {
	if len(values) == 0 {
		return association.Clear()
	}
	return association.Replace(values)
}

func resolveTags(tx *gorm.DB, ownerID uint, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag := models.Tag{Name: name, UserID: ownerID}
		if err := tx.Where("user_id = ? AND lower(name) = ?", ownerID, strings.ToLower(name)).FirstOrCreate(&tag).Error; err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", name, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func resolveIngredients(tx *gorm.DB, ownerID uint, names []string) ([]models.Ingredient, error) {
	ingredients := make([]models.Ingredient, 0, len(names))
	for _, name := range names {
		ingredient := models.Ingredient{Name: name, UserID: ownerID}
		if err := tx.Where("user_id = ? AND lower(name) = ?", ownerID, strings.ToLower(name)).FirstOrCreate(&ingredient).Error; err != nil {
			return nil, fmt.Errorf("resolve ingredient %q: %w", name, err)
		}
		ingredients = append(ingredients, ingredient)
	}
	return ingredients, nil
}

func resolveImportOwner(database *gorm.DB, email string) (uint, error) {
	if database == nil {
		return 0, fmt.Errorf("database handle is nil")
	}

	email = strings.TrimSpace(email)
	if email != "" {
		var user models.User
		if err := database.Where("lower(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
			return 0, fmt.Errorf("find owner by email %q: %w", strings.ToLower(email), err)
		}
		return user.ID, nil
	}

	var user models.User
	if err := database.Order("id asc").First(&user).Error; err != nil {
		return 0, fmt.Errorf("find default owner: %w", err)
	}
	return user.ID, nil
}

func readCSV(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("csv is empty")
	}

	header := rows[0]
	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		record := make(map[string]string, len(header))
		for idx, key := range header {
			if idx >= len(row) {
				continue
			}
			record[strings.TrimSpace(key)] = strings.TrimSpace(row[idx])
		}
		records = append(records, record)
	}
	return records, nil
}

func buildRecipe(row map[string]string) (models.Recipe, error) {
	title := normalizeText(row["Title"])
	if title == "" {
		return models.Recipe{}, errors.New("title is required")
	}
	if len(title) > 255 {
		return models.Recipe{}, errors.New("title exceeds 255 characters")
	}

	minutes, err := parseMinutes(row["Time Minutes"])
	if err != nil {
		return models.Recipe{}, err
	}
	price, err := parsePrice(row["Price"])
	if err != nil {
		return models.Recipe{}, err
	}

	return models.Recipe{
		Title:       title,
		TimeMinutes: minutes,
		Price:       price,
		Link:        normalizeValue(row["Link"]),
	}, nil
}

// parseMinutes accepts a whole number of minutes, optionally followed by a
// "min", "mins" or "minutes" unit.
func parseMinutes(value string) (int, error) {
	clean := strings.ToLower(normalizeValue(value))
	for _, unit := range []string{"minutes", "mins", "min"} {
		if trimmed, ok := strings.CutSuffix(clean, unit); ok {
			clean = strings.TrimSpace(trimmed)
			break
		}
	}
	minutes, err := strconv.Atoi(clean)
	if err != nil {
		return 0, fmt.Errorf("time minutes %q is not a number", value)
	}
	if minutes < 0 {
		return 0, fmt.Errorf("time minutes %q must not be negative", value)
	}
	return minutes, nil
}

// parsePrice accepts values like "5", "5.50" or "$5.50" within decimal(5,2).
func parsePrice(value string) (float64, error) {
	value = strings.TrimPrefix(normalizeValue(value), "$")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q is not a number", value)
	}
	rounded := math.Round(parsed*100) / 100
	if rounded < 0 || rounded >= 1000 {
		return 0, fmt.Errorf("price %q is out of range", value)
	}
	return rounded, nil
}

func normalizeValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return ""
	}
	return value
}

func normalizeText(value string) string {
	value = normalizeValue(value)
	if value == "" {
		return value
	}
	return strings.TrimSpace(cleanWhitespace.ReplaceAllString(value, " "))
}

// splitNames splits a comma or semicolon separated list, dropping blanks and
// case-insensitive duplicates.
func splitNames(value string) []string {
	value = normalizeValue(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(strings.ReplaceAll(value, ";", ","), ",")
	names := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, part := range parts {
		clean := normalizeText(part)
		if clean == "" {
			continue
		}
		key := strings.ToLower(clean)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, clean)
	}
	return names
}
