package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	applog "recipebox/internal/log"
)

// attributeKind describes one of the user-owned recipe attributes. Tags and
// ingredients share their schema and behaviour and differ only in tables.
type attributeKind struct {
	name       string
	prefix     string
	table      string
	joinTable  string
	joinColumn string
}

var (
	tagKind = attributeKind{
		name:       "tag",
		prefix:     "/api/recipe/tags",
		table:      "tags",
		joinTable:  "recipe_tags",
		joinColumn: "tag_id",
	}
	ingredientKind = attributeKind{
		name:       "ingredient",
		prefix:     "/api/recipe/ingredients",
		table:      "ingredients",
		joinTable:  "recipe_ingredients",
		joinColumn: "ingredient_id",
	}
)

// attributeRecord maps a row of either attribute table.
type attributeRecord struct {
	ID        uint
	Name      string
	UserID    uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

type attributeResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type attributeRequest struct {
	Name *string `json:"name" validate:"required,notblank,max=255"`
}

// TagResource serves /api/recipe/tags/ for the authenticated user.
func TagResource(w http.ResponseWriter, r *http.Request) {
	serveAttribute(w, r, tagKind)
}

// IngredientResource serves /api/recipe/ingredients/ for the authenticated user.
func IngredientResource(w http.ResponseWriter, r *http.Request) {
	serveAttribute(w, r, ingredientKind)
}

func serveAttribute(w http.ResponseWriter, r *http.Request, kind attributeKind) {
	if unavailable(w, r) {
		return
	}
	user, ok := currentUser(r)
	if !ok {
		applog.Debug(r.Context(), "attribute request missing authenticated user", "kind", kind.name)
		unauthorized(w, detailNotAuthenticated)
		return
	}

	segments := resourcePath(r, kind.prefix)
	if len(segments) == 0 {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			listAttributes(w, r, kind, user.ID)
		case http.MethodPost:
			createAttribute(w, r, kind, user.ID)
		default:
			methodNotAllowed(w, r)
		}
		return
	}

	id, ok := parseID(segments[0])
	if !ok || len(segments) > 1 {
		applog.Debug(r.Context(), "invalid attribute path", "kind", kind.name, "path", r.URL.Path)
		notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		showAttribute(w, r, kind, id, user.ID)
	case http.MethodPut, http.MethodPatch:
		updateAttribute(w, r, kind, id, user.ID)
	case http.MethodDelete:
		deleteAttribute(w, r, kind, id, user.ID)
	default:
		methodNotAllowed(w, r)
	}
}

func listAttributes(w http.ResponseWriter, r *http.Request, kind attributeKind, userID uint) {
	ctx := r.Context()
	query := database.WithContext(ctx).
		Table(kind.table).
		Where("user_id = ?", userID).
		Order("name desc").
		Order("id desc")

	if assignedOnly(r) {
		assigned := database.WithContext(ctx).
			Table(kind.joinTable).
			Select(kind.joinTable+"."+kind.joinColumn).
			Joins("JOIN recipes ON recipes.id = "+kind.joinTable+".recipe_id").
			Where("recipes.user_id = ?", userID)
		query = query.Where("id IN (?)", assigned)
	}

	var records []attributeRecord
	if err := query.Find(&records).Error; err != nil {
		applog.Error(ctx, "failed to list attributes", "error", err, "kind", kind.name)
		writeJSONError(w, http.StatusInternalServerError, "unable to load "+kind.table)
		return
	}

	responses := make([]attributeResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, attributeResponse{ID: record.ID, Name: record.Name})
	}
	writeJSON(w, http.StatusOK, responses)
}

func assignedOnly(r *http.Request) bool {
	switch strings.TrimSpace(r.URL.Query().Get("assigned_only")) {
	case "1", "true", "True":
		return true
	}
	return false
}

func createAttribute(w http.ResponseWriter, r *http.Request, kind attributeKind, userID uint) {
	ctx := r.Context()
	var payload attributeRequest
	if errs := decodeJSON(r, &payload); errs != nil {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}
	if errs := validateRequest(&payload); errs != nil {
		applog.Debug(ctx, "invalid attribute payload", "kind", kind.name)
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	record := attributeRecord{Name: strings.TrimSpace(*payload.Name), UserID: userID}
	if err := database.WithContext(ctx).Table(kind.table).Create(&record).Error; err != nil {
		applog.Error(ctx, "failed to create attribute", "error", err, "kind", kind.name)
		writeJSONError(w, http.StatusInternalServerError, "unable to create "+kind.name)
		return
	}

	applog.Debug(ctx, "attribute created", "kind", kind.name, "id", record.ID)
	writeJSON(w, http.StatusCreated, attributeResponse{ID: record.ID, Name: record.Name})
}

func loadAttribute(r *http.Request, kind attributeKind, id, userID uint) (*attributeRecord, error) {
	var record attributeRecord
	err := database.WithContext(r.Context()).
		Table(kind.table).
		Where("id = ? AND user_id = ?", id, userID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func showAttribute(w http.ResponseWriter, r *http.Request, kind attributeKind, id, userID uint) {
	record, err := loadAttribute(r, kind, id, userID)
	if err != nil {
		respondLoadError(w, r, err, kind.name, id)
		return
	}
	writeJSON(w, http.StatusOK, attributeResponse{ID: record.ID, Name: record.Name})
}

func updateAttribute(w http.ResponseWriter, r *http.Request, kind attributeKind, id, userID uint) {
	ctx := r.Context()
	record, err := loadAttribute(r, kind, id, userID)
	if err != nil {
		respondLoadError(w, r, err, kind.name, id)
		return
	}

	var payload attributeRequest
	if errs := decodeJSON(r, &payload); errs != nil {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}
	if r.Method == http.MethodPatch && payload.Name == nil {
		payload.Name = &record.Name
	}
	if errs := validateRequest(&payload); errs != nil {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	record.Name = strings.TrimSpace(*payload.Name)
	err = database.WithContext(ctx).
		Table(kind.table).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"name": record.Name, "updated_at": time.Now()}).Error
	if err != nil {
		applog.Error(ctx, "failed to update attribute", "error", err, "kind", kind.name, "id", id)
		writeJSONError(w, http.StatusInternalServerError, "unable to update "+kind.name)
		return
	}
	writeJSON(w, http.StatusOK, attributeResponse{ID: record.ID, Name: record.Name})
}

func deleteAttribute(w http.ResponseWriter, r *http.Request, kind attributeKind, id, userID uint) {
	ctx := r.Context()
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Table(kind.table).Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&attributeRecord{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Exec("DELETE FROM "+kind.joinTable+" WHERE "+kind.joinColumn+" = ?", id).Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM "+kind.table+" WHERE id = ? AND user_id = ?", id, userID).Error
	})
	if err != nil {
		respondLoadError(w, r, err, kind.name, id)
		return
	}
	applog.Debug(ctx, "attribute deleted", "kind", kind.name, "id", id)
	writeJSON(w, http.StatusNoContent, nil)
}

// respondLoadError answers 404 for missing or foreign records and 500 otherwise.
func respondLoadError(w http.ResponseWriter, r *http.Request, err error, kind string, id uint) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		applog.Debug(r.Context(), "record not found or not owned", "kind", kind, "id", id)
		notFound(w)
		return
	}
	applog.Error(r.Context(), "failed to load record", "error", err, "kind", kind, "id", id)
	writeJSONError(w, http.StatusInternalServerError, "unable to load "+kind)
}
