package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	applog "recipebox/internal/log"
	"recipebox/internal/metrics"
	"recipebox/models"
)

const maxImageBytes = 10 << 20

type recipeImageResponse struct {
	ID    uint    `json:"id"`
	Image *string `json:"image"`
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// uploadRecipeImage stores the multipart "image" file and points the recipe at
// it. The previous image, if any, is removed after the switch.
func uploadRecipeImage(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	ctx := r.Context()
	if media == nil {
		applog.Debug(ctx, "image upload without storage")
		writeJSONError(w, http.StatusServiceUnavailable, "image storage not available")
		return
	}

	recipe, err := loadRecipe(database.WithContext(ctx), recipeID, userID)
	if err != nil {
		respondLoadError(w, r, err, "recipe", recipeID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, fieldErrors{"image": {"The submitted file is too large."}})
			return
		}
		applog.Debug(ctx, "invalid multipart upload", "error", err)
		writeJSON(w, http.StatusBadRequest, fieldErrors{"image": {"The submitted data was not a file. Check the encoding type on the form."}})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"image": {"No file was submitted."}})
		return
	}
	defer file.Close()

	if header.Size == 0 {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"image": {"The submitted file is empty."}})
		return
	}
	if header.Size > maxImageBytes {
		applog.Debug(ctx, "rejected oversized upload", "size", header.Size)
		writeJSON(w, http.StatusBadRequest, fieldErrors{"image": {"The submitted file is too large."}})
		return
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		applog.Error(ctx, "failed to read uploaded image", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to read upload")
		return
	}
	contentType := http.DetectContentType(sniff[:n])
	if !allowedImageTypes[contentType] {
		applog.Debug(ctx, "rejected upload content type", "contentType", contentType)
		writeJSON(w, http.StatusBadRequest, fieldErrors{"image": {"Upload a valid image. The file you uploaded was either not an image or a corrupted image."}})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		applog.Error(ctx, "failed to rewind uploaded image", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to read upload")
		return
	}

	key := models.RecipeImageFilePath(header.Filename)
	if err := media.Save(ctx, key, file, contentType); err != nil {
		applog.Error(ctx, "failed to store recipe image", "error", err, "key", key)
		writeJSONError(w, http.StatusInternalServerError, "unable to store image")
		return
	}

	previous := recipe.Image
	if err := database.WithContext(ctx).Model(recipe).Update("image", key).Error; err != nil {
		applog.Error(ctx, "failed to save recipe image", "error", err, "id", recipeID)
		if delErr := media.Delete(ctx, key); delErr != nil {
			applog.Warn(ctx, "failed to remove orphaned image", "error", delErr, "key", key)
		}
		writeJSONError(w, http.StatusInternalServerError, "unable to save image")
		return
	}
	if previous != "" && previous != key {
		if err := media.Delete(ctx, previous); err != nil {
			applog.Warn(ctx, "failed to delete previous recipe image", "error", err, "key", previous)
		}
	}

	metrics.ObserveImageUpload(header.Size)
	applog.Info(ctx, "recipe image uploaded", "id", recipeID, "key", key, "bytes", header.Size,
		"original", strings.TrimSpace(header.Filename))
	writeJSON(w, http.StatusOK, recipeImageResponse{ID: recipe.ID, Image: imageURL(key)})
}
