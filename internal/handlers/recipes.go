package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"gorm.io/gorm"

	applog "recipebox/internal/log"
	"recipebox/models"
)

const recipePrefix = "/api/recipe/recipes"

// recipeResponse is the list and write representation: related attributes are
// referenced by id.
type recipeResponse struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Ingredients []uint `json:"ingredients"`
	TimeMinute  int    `json:"time_minute"`
	Price       string `json:"price"`
	Tags        []uint `json:"tags"`
	Link        string `json:"link"`
}

// recipeDetailResponse embeds the related attributes and exposes the image.
type recipeDetailResponse struct {
	ID          uint                `json:"id"`
	Title       string              `json:"title"`
	Ingredients []attributeResponse `json:"ingredients"`
	TimeMinute  int                 `json:"time_minute"`
	Price       string              `json:"price"`
	Tags        []attributeResponse `json:"tags"`
	Link        string              `json:"link"`
	Image       *string             `json:"image"`
}

type recipeRequest struct {
	Title       *string        `json:"title" validate:"required,notblank,max=255"`
	TimeMinute  *int           `json:"time_minute" validate:"required,min=0"`
	Price       *decimalString `json:"price" validate:"required,price"`
	Link        *string        `json:"link" validate:"omitnil,max=255"`
	Tags        []uint         `json:"tags" validate:"required"`
	Ingredients []uint         `json:"ingredients" validate:"required"`
}

func formatPrice(price float64) string {
	return fmt.Sprintf("%.2f", price)
}

func projectRecipe(recipe models.Recipe) recipeResponse {
	return recipeResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		Ingredients: recipe.IngredientIDs(),
		TimeMinute:  recipe.TimeMinutes,
		Price:       formatPrice(recipe.Price),
		Tags:        recipe.TagIDs(),
		Link:        recipe.Link,
	}
}

func projectRecipeDetail(recipe models.Recipe) recipeDetailResponse {
	resp := recipeDetailResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		Ingredients: make([]attributeResponse, 0, len(recipe.Ingredients)),
		TimeMinute:  recipe.TimeMinutes,
		Price:       formatPrice(recipe.Price),
		Tags:        make([]attributeResponse, 0, len(recipe.Tags)),
		Link:        recipe.Link,
		Image:       imageURL(recipe.Image),
	}
	for _, ingredient := range recipe.Ingredients {
		resp.Ingredients = append(resp.Ingredients, attributeResponse{ID: ingredient.ID, Name: ingredient.Name})
	}
	for _, tag := range recipe.Tags {
		resp.Tags = append(resp.Tags, attributeResponse{ID: tag.ID, Name: tag.Name})
	}
	return resp
}

func imageURL(key string) *string {
	if key == "" || media == nil {
		return nil
	}
	url := media.URL(key)
	return &url
}

// RecipeResource serves /api/recipe/recipes/ for the authenticated user.
func RecipeResource(w http.ResponseWriter, r *http.Request) {
	if unavailable(w, r) {
		return
	}
	user, ok := currentUser(r)
	if !ok {
		applog.Debug(r.Context(), "recipe request missing authenticated user")
		unauthorized(w, detailNotAuthenticated)
		return
	}

	segments := resourcePath(r, recipePrefix)
	if len(segments) == 0 {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			listRecipes(w, r, user.ID)
		case http.MethodPost:
			createRecipe(w, r, user.ID)
		default:
			methodNotAllowed(w, r)
		}
		return
	}

	recipeID, ok := parseID(segments[0])
	if !ok || len(segments) > 2 {
		applog.Debug(r.Context(), "invalid recipe path", "path", r.URL.Path)
		notFound(w)
		return
	}

	if len(segments) == 2 {
		if segments[1] != "upload-image" {
			notFound(w)
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		uploadRecipeImage(w, r, recipeID, user.ID)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		showRecipe(w, r, recipeID, user.ID)
	case http.MethodPut, http.MethodPatch:
		updateRecipe(w, r, recipeID, user.ID)
	case http.MethodDelete:
		deleteRecipe(w, r, recipeID, user.ID)
	default:
		methodNotAllowed(w, r)
	}
}

func preloadAttributes(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id asc") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("ingredients.id asc") })
}

func listRecipes(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	query := preloadAttributes(database.WithContext(ctx)).
		Where("recipes.user_id = ?", userID).
		Order("recipes.id desc")

	errs := fieldErrors{}
	if ids, ok := idsFromQuery(r, "tags", errs); ok && len(ids) > 0 {
		query = query.Where("recipes.id IN (?)",
			database.WithContext(ctx).Table("recipe_tags").Select("recipe_id").Where("tag_id IN ?", ids))
	}
	if ids, ok := idsFromQuery(r, "ingredients", errs); ok && len(ids) > 0 {
		query = query.Where("recipes.id IN (?)",
			database.WithContext(ctx).Table("recipe_ingredients").Select("recipe_id").Where("ingredient_id IN ?", ids))
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	var recipes []models.Recipe
	if err := query.Find(&recipes).Error; err != nil {
		applog.Error(ctx, "failed to list recipes", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipes")
		return
	}

	responses := make([]recipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		responses = append(responses, projectRecipe(recipe))
	}
	writeJSON(w, http.StatusOK, responses)
}

// idsFromQuery parses a comma separated id filter such as ?tags=1,2.
func idsFromQuery(r *http.Request, name string, errs fieldErrors) ([]uint, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		id, ok := parseID(strings.TrimSpace(part))
		if !ok {
			errs.add(name, fmt.Sprintf("%q is not a valid id.", part))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func loadRecipe(db *gorm.DB, recipeID, userID uint) (*models.Recipe, error) {
	var recipe models.Recipe
	err := preloadAttributes(db).
		Where("recipes.id = ? AND recipes.user_id = ?", recipeID, userID).
		First(&recipe).Error
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

func showRecipe(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	recipe, err := loadRecipe(database.WithContext(r.Context()), recipeID, userID)
	if err != nil {
		respondLoadError(w, r, err, "recipe", recipeID)
		return
	}
	writeJSON(w, http.StatusOK, projectRecipeDetail(*recipe))
}

// ownedAttributes loads the user's tags and ingredients named by the request.
// Unknown ids and ids owned by other users are reported as field errors.
func ownedAttributes(tx *gorm.DB, payload recipeRequest, userID uint) ([]models.Tag, []models.Ingredient, fieldErrors, error) {
	errs := fieldErrors{}

	var tags []models.Tag
	if ids := uniqueIDs(payload.Tags); len(ids) > 0 {
		if err := tx.Where("id IN ? AND user_id = ?", ids, userID).Order("id").Find(&tags).Error; err != nil {
			return nil, nil, nil, err
		}
		found := make(map[uint]bool, len(tags))
		for _, tag := range tags {
			found[tag.ID] = true
		}
		if missing, ok := firstMissing(ids, found); ok {
			errs.add("tags", invalidPK(missing))
		}
	}

	var ingredients []models.Ingredient
	if ids := uniqueIDs(payload.Ingredients); len(ids) > 0 {
		if err := tx.Where("id IN ? AND user_id = ?", ids, userID).Order("id").Find(&ingredients).Error; err != nil {
			return nil, nil, nil, err
		}
		found := make(map[uint]bool, len(ingredients))
		for _, ingredient := range ingredients {
			found[ingredient.ID] = true
		}
		if missing, ok := firstMissing(ids, found); ok {
			errs.add("ingredients", invalidPK(missing))
		}
	}

	if len(errs) > 0 {
		return nil, nil, errs, nil
	}
	return tags, ingredients, nil, nil
}

func invalidPK(id uint) string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func firstMissing(ids []uint, found map[uint]bool) (uint, bool) {
	for _, id := range ids {
		if !found[id] {
			return id, true
		}
	}
	return 0, false
}

// validationFailure carries field errors out of a transaction so it rolls back.
type validationFailure struct {
	errs fieldErrors
}

func (v *validationFailure) Error() string {
	keys := make([]string, 0, len(v.errs))
	for key := range v.errs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return "invalid fields: " + strings.Join(keys, ", ")
}

func createRecipe(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	var payload recipeRequest
	if errs := decodeJSON(r, &payload); errs != nil {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}
	if errs := validateRequest(&payload); errs != nil {
		applog.Debug(ctx, "invalid recipe payload", "fields", len(errs))
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	recipe := models.Recipe{
		Title:       strings.TrimSpace(*payload.Title),
		TimeMinutes: *payload.TimeMinute,
		Price:       parsePrice(*payload.Price),
		UserID:      userID,
	}
	if payload.Link != nil {
		recipe.Link = strings.TrimSpace(*payload.Link)
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, ingredients, errs, err := ownedAttributes(tx, payload, userID)
		if err != nil {
			return err
		}
		if errs != nil {
			return &validationFailure{errs: errs}
		}
		recipe.Tags = tags
		recipe.Ingredients = ingredients
		return tx.Omit("Tags.*", "Ingredients.*").Create(&recipe).Error
	})
	if respondWriteError(w, r, err, "create") {
		return
	}

	applog.Debug(ctx, "recipe created", "id", recipe.ID)
	writeJSON(w, http.StatusCreated, projectRecipe(recipe))
}

func updateRecipe(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	ctx := r.Context()
	partial := r.Method == http.MethodPatch

	var payload recipeRequest
	if errs := decodeJSON(r, &payload); errs != nil {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	var recipe *models.Recipe
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		recipe, err = loadRecipe(tx, recipeID, userID)
		if err != nil {
			return err
		}

		replaceTags := payload.Tags != nil
		replaceIngredients := payload.Ingredients != nil
		if partial {
			fillMissing(&payload, recipe)
		}
		if errs := validateRequest(&payload); errs != nil {
			return &validationFailure{errs: errs}
		}

		tags, ingredients, errs, err := ownedAttributes(tx, payload, userID)
		if err != nil {
			return err
		}
		if errs != nil {
			return &validationFailure{errs: errs}
		}

		recipe.Title = strings.TrimSpace(*payload.Title)
		recipe.TimeMinutes = *payload.TimeMinute
		recipe.Price = parsePrice(*payload.Price)
		if payload.Link != nil {
			recipe.Link = strings.TrimSpace(*payload.Link)
		} else if !partial {
			recipe.Link = ""
		}

		err = tx.Model(recipe).Updates(map[string]any{
			"title":       recipe.Title,
			"time_minute": recipe.TimeMinutes,
			"price":       recipe.Price,
			"link":        recipe.Link,
		}).Error
		if err != nil {
			return err
		}

		if replaceTags {
			if err := replaceAssociation(tx, recipe, "Tags", tags); err != nil {
				return err
			}
			recipe.Tags = tags
		}
		if replaceIngredients {
			if err := replaceAssociation(tx, recipe, "Ingredients", ingredients); err != nil {
				return err
			}
			recipe.Ingredients = ingredients
		}
		return nil
	})
	if respondWriteError(w, r, err, "update") {
		return
	}

	applog.Debug(ctx, "recipe updated", "id", recipe.ID, "partial", partial)
	writeJSON(w, http.StatusOK, projectRecipe(*recipe))
}

// fillMissing copies the stored values into fields a partial update left out
// so the request validates as a whole.
func fillMissing(payload *recipeRequest, recipe *models.Recipe) {
	if payload.Title == nil {
		payload.Title = &recipe.Title
	}
	if payload.TimeMinute == nil {
		payload.TimeMinute = &recipe.TimeMinutes
	}
	if payload.Price == nil {
		price := decimalString(formatPrice(recipe.Price))
		payload.Price = &price
	}
	if payload.Tags == nil {
		payload.Tags = recipe.TagIDs()
	}
	if payload.Ingredients == nil {
		payload.Ingredients = recipe.IngredientIDs()
	}
}

func replaceAssociation[T any](tx *gorm.DB, recipe *models.Recipe, name string, values []T) error {
	association := tx.Model(recipe).Association(name)
	if len(values) == 0 {
		return association.Clear()
	}
	return association.Replace(values)
}

// respondWriteError answers a failed create or update and reports whether a
// response was written.
func respondWriteError(w http.ResponseWriter, r *http.Request, err error, action string) bool {
	if err == nil {
		return false
	}
	var failure *validationFailure
	if errors.As(err, &failure) {
		applog.Debug(r.Context(), "invalid recipe payload", "action", action, "error", failure.Error())
		writeJSON(w, http.StatusBadRequest, failure.errs)
		return true
	}
	respondLoadError(w, r, err, "recipe", 0)
	return true
}

func deleteRecipe(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	ctx := r.Context()
	var image string
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := loadRecipe(tx, recipeID, userID)
		if err != nil {
			return err
		}
		image = recipe.Image
		if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Model(recipe).Association("Ingredients").Clear(); err != nil {
			return err
		}
		return tx.Delete(recipe).Error
	})
	if err != nil {
		respondLoadError(w, r, err, "recipe", recipeID)
		return
	}

	if image != "" && media != nil {
		if err := media.Delete(ctx, image); err != nil {
			applog.Warn(ctx, "failed to delete recipe image", "error", err, "key", image)
		}
	}
	applog.Debug(ctx, "recipe deleted", "id", recipeID)
	writeJSON(w, http.StatusNoContent, nil)
}
