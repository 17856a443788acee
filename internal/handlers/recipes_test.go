package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"recipebox/models"
)

func TestListRecipesRepresentationAndOrdering(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	other := env.createUser(t, "other@example.com")
	vegan := env.createTag(t, user, "Vegan")
	kale := env.createIngredient(t, user, "Kale")
	first := env.createRecipe(t, user, "Kale salad", []models.Tag{vegan}, []models.Ingredient{kale})
	second := env.createRecipe(t, user, "Plain toast", nil, nil)
	env.createRecipe(t, other, "Someone else's pie", nil, nil)

	w := serveProtected(RecipeResource, apiRequest(t, http.MethodGet, "/api/recipe/recipes/", nil, user))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	recipes := decodeBody[[]recipeResponse](t, w)
	if len(recipes) != 2 {
		t.Fatalf("expected only the user's 2 recipes, got %+v", recipes)
	}
	if recipes[0].ID != second.ID || recipes[1].ID != first.ID {
		t.Fatalf("expected recipes ordered by id descending, got %+v", recipes)
	}
	want := recipeResponse{
		ID:          first.ID,
		Title:       "Kale salad",
		Ingredients: []uint{kale.ID},
		TimeMinute:  10,
		Price:       "5.00",
		Tags:        []uint{vegan.ID},
		Link:        "",
	}
	if !reflect.DeepEqual(recipes[1], want) {
		t.Fatalf("unexpected representation:\n got %+v\nwant %+v", recipes[1], want)
	}
	if recipes[0].Tags == nil || len(recipes[0].Tags) != 0 {
		t.Fatalf("expected empty tag list rather than null, got %+v", recipes[0].Tags)
	}
}

func TestListRecipesFilters(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	vegan := env.createTag(t, user, "Vegan")
	vegetarian := env.createTag(t, user, "Vegetarian")
	feta := env.createIngredient(t, user, "Feta")
	curry := env.createRecipe(t, user, "Thai vegetable curry", []models.Tag{vegan}, nil)
	tahini := env.createRecipe(t, user, "Aubergine with tahini", []models.Tag{vegan, vegetarian}, []models.Ingredient{feta})
	env.createRecipe(t, user, "Fish and chips", nil, nil)

	tests := []struct {
		query string
		want  []uint
	}{
		{query: fmt.Sprintf("tags=%d,%d", vegan.ID, vegetarian.ID), want: []uint{tahini.ID, curry.ID}},
		{query: fmt.Sprintf("tags=%d", vegetarian.ID), want: []uint{tahini.ID}},
		{query: fmt.Sprintf("ingredients=%d", feta.ID), want: []uint{tahini.ID}},
		{query: fmt.Sprintf("tags=%d&ingredients=%d", vegan.ID, feta.ID), want: []uint{tahini.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := serveProtected(RecipeResource, apiRequest(t, http.MethodGet, "/api/recipe/recipes/?"+tt.query, nil, user))
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
			}
			var got []uint
			for _, recipe := range decodeBody[[]recipeResponse](t, w) {
				got = append(got, recipe.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}

	w := serveProtected(RecipeResource, apiRequest(t, http.MethodGet, "/api/recipe/recipes/?tags=abc", nil, user))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for a malformed filter, got %d", w.Code)
	}
}

func TestCreateRecipe(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	vegan := env.createTag(t, user, "Vegan")
	dessert := env.createTag(t, user, "Dessert")
	cocoa := env.createIngredient(t, user, "Cocoa")

	payload := map[string]any{
		"title":       "Avocado lime cheesecake",
		"time_minute": 60,
		"price":       "20.00",
		"tags":        []uint{vegan.ID, dessert.ID},
		"ingredients": []uint{cocoa.ID},
		"link":        "https://example.com/cheesecake",
	}
	w := serveProtected(RecipeResource, apiRequest(t, http.MethodPost, "/api/recipe/recipes/", payload, user))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody[recipeResponse](t, w)
	if created.Price != "20.00" || created.TimeMinute != 60 || len(created.Tags) != 2 || len(created.Ingredients) != 1 {
		t.Fatalf("unexpected created recipe %+v", created)
	}

	var stored models.Recipe
	if err := env.db.Preload("Tags").Preload("Ingredients").First(&stored, created.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	if stored.UserID != user.ID {
		t.Fatalf("expected recipe owned by %d, got %d", user.ID, stored.UserID)
	}
	if len(stored.Tags) != 2 || len(stored.Ingredients) != 1 {
		t.Fatalf("expected associations to be stored, got %+v", stored)
	}
	if stored.Link != "https://example.com/cheesecake" {
		t.Fatalf("unexpected link %q", stored.Link)
	}

	numeric := map[string]any{"title": "Toast", "time_minute": 2, "price": 1.5, "tags": []uint{}, "ingredients": []uint{}}
	w = serveProtected(RecipeResource, apiRequest(t, http.MethodPost, "/api/recipe/recipes/", numeric, user))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected numeric price to be accepted, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody[recipeResponse](t, w).Price; got != "1.50" {
		t.Fatalf("expected price 1.50, got %q", got)
	}
}

func TestCreateRecipeRejectsForeignAttributes(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	other := env.createUser(t, "other@example.com")
	foreignTag := env.createTag(t, other, "Private")
	foreignIngredient := env.createIngredient(t, other, "Truffle")

	payload := map[string]any{
		"title":       "Borrowed",
		"time_minute": 5,
		"price":       "1.00",
		"tags":        []uint{foreignTag.ID},
		"ingredients": []uint{foreignIngredient.ID, 9999},
	}
	w := serveProtected(RecipeResource, apiRequest(t, http.MethodPost, "/api/recipe/recipes/", payload, user))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	errs := decodeBody[map[string][]string](t, w)
	wantTag := fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", foreignTag.ID)
	if len(errs["tags"]) != 1 || errs["tags"][0] != wantTag {
		t.Fatalf("expected tag error %q, got %+v", wantTag, errs)
	}
	if len(errs["ingredients"]) != 1 {
		t.Fatalf("expected ingredient error, got %+v", errs)
	}

	var count int64
	env.db.Model(&models.Recipe{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no recipe to be persisted, found %d", count)
	}
}

func TestCreateRecipeValidation(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")

	valid := func() map[string]any {
		return map[string]any{"title": "Soup", "time_minute": 30, "price": "4.50", "tags": []uint{}, "ingredients": []uint{}}
	}

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		field   string
		message string
	}{
		{name: "missing title", mutate: func(p map[string]any) { delete(p, "title") }, field: "title", message: "This field is required."},
		{name: "blank title", mutate: func(p map[string]any) { p["title"] = " " }, field: "title", message: "This field may not be blank."},
		{name: "negative time", mutate: func(p map[string]any) { p["time_minute"] = -1 }, field: "time_minute", message: "Ensure this value is greater than or equal to 0."},
		{name: "string time", mutate: func(p map[string]any) { p["time_minute"] = "soon" }, field: "time_minute", message: "A valid integer is required."},
		{name: "price precision", mutate: func(p map[string]any) { p["price"] = "4.555" }, field: "price", message: "Ensure that there are no more than 2 decimal places."},
		{name: "price too large", mutate: func(p map[string]any) { p["price"] = "1000" }, field: "price", message: "Ensure that there are no more than 3 digits before the decimal point."},
		{name: "price not a number", mutate: func(p map[string]any) { p["price"] = "cheap" }, field: "price", message: "A valid number is required."},
		{name: "missing tags", mutate: func(p map[string]any) { delete(p, "tags") }, field: "tags", message: "This field is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := valid()
			tt.mutate(payload)
			w := serveProtected(RecipeResource, apiRequest(t, http.MethodPost, "/api/recipe/recipes/", payload, user))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
			errs := decodeBody[map[string][]string](t, w)
			if len(errs[tt.field]) == 0 || errs[tt.field][0] != tt.message {
				t.Fatalf("expected %s error %q, got %+v", tt.field, tt.message, errs)
			}
		})
	}
}

func TestRecipeDetailEmbedsAttributes(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	other := env.createUser(t, "other@example.com")
	vegan := env.createTag(t, user, "Vegan")
	kale := env.createIngredient(t, user, "Kale")
	recipe := env.createRecipe(t, user, "Kale salad", []models.Tag{vegan}, []models.Ingredient{kale})
	foreign := env.createRecipe(t, other, "Hidden", nil, nil)

	w := serveProtected(RecipeResource, apiRequest(t, http.MethodGet, fmt.Sprintf("/api/recipe/recipes/%d/", recipe.ID), nil, user))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	detail := decodeBody[recipeDetailResponse](t, w)
	if len(detail.Tags) != 1 || detail.Tags[0] != (attributeResponse{ID: vegan.ID, Name: "Vegan"}) {
		t.Fatalf("expected embedded tag, got %+v", detail.Tags)
	}
	if len(detail.Ingredients) != 1 || detail.Ingredients[0].Name != "Kale" {
		t.Fatalf("expected embedded ingredient, got %+v", detail.Ingredients)
	}
	if detail.Image != nil {
		t.Fatalf("expected no image, got %q", *detail.Image)
	}

	w = serveProtected(RecipeResource, apiRequest(t, http.MethodGet, fmt.Sprintf("/api/recipe/recipes/%d/", foreign.ID), nil, user))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for another user's recipe, got %d", w.Code)
	}
}

func TestPartialUpdateRecipe(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	curry := env.createTag(t, user, "Curry")
	recipe := env.createRecipe(t, user, "Chicken tikka", []models.Tag{curry}, nil)

	target := fmt.Sprintf("/api/recipe/recipes/%d/", recipe.ID)
	w := serveProtected(RecipeResource, apiRequest(t, http.MethodPatch, target, map[string]any{"title": "Chicken tikka masala"}, user))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var stored models.Recipe
	if err := env.db.Preload("Tags").First(&stored, recipe.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	if stored.Title != "Chicken tikka masala" {
		t.Fatalf("expected title to change, got %q", stored.Title)
	}
	if stored.TimeMinutes != 10 || stored.Price != 5 {
		t.Fatalf("expected other fields to be unchanged, got %+v", stored)
	}
	if len(stored.Tags) != 1 || stored.Tags[0].ID != curry.ID {
		t.Fatalf("expected tags to be unchanged, got %+v", stored.Tags)
	}

	w = serveProtected(RecipeResource, apiRequest(t, http.MethodPatch, target, map[string]any{"price": "-1"}, user))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for a negative price, got %d", w.Code)
	}
}

func TestFullUpdateRecipeReplacesAttributes(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	curry := env.createTag(t, user, "Curry")
	quick := env.createTag(t, user, "Quick")
	recipe := env.createRecipe(t, user, "Spaghetti carbonara", []models.Tag{curry}, nil)
	if err := env.db.Model(&recipe).Update("link", "https://example.com").Error; err != nil {
		t.Fatalf("failed to set link: %v", err)
	}

	payload := map[string]any{"title": "Spaghetti", "time_minute": 25, "price": "5.00", "tags": []uint{quick.ID}, "ingredients": []uint{}}
	w := serveProtected(RecipeResource, apiRequest(t, http.MethodPut, fmt.Sprintf("/api/recipe/recipes/%d/", recipe.ID), payload, user))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := decodeBody[recipeResponse](t, w)
	if !reflect.DeepEqual(updated.Tags, []uint{quick.ID}) {
		t.Fatalf("expected tags to be replaced, got %v", updated.Tags)
	}

	var stored models.Recipe
	if err := env.db.Preload("Tags").First(&stored, recipe.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	if stored.TimeMinutes != 25 || stored.Link != "" {
		t.Fatalf("expected full update to overwrite fields, got %+v", stored)
	}
	if len(stored.Tags) != 1 || stored.Tags[0].ID != quick.ID {
		t.Fatalf("expected stored tags to be replaced, got %+v", stored.Tags)
	}

	w = serveProtected(RecipeResource, apiRequest(t, http.MethodPut, fmt.Sprintf("/api/recipe/recipes/%d/", recipe.ID), map[string]any{"title": "Only"}, user))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for an incomplete full update, got %d", w.Code)
	}
}

func TestDeleteRecipeRemovesAssociations(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	other := env.createUser(t, "other@example.com")
	tag := env.createTag(t, user, "Quick")
	ingredient := env.createIngredient(t, user, "Salt")
	recipe := env.createRecipe(t, user, "Chips", []models.Tag{tag}, []models.Ingredient{ingredient})
	foreign := env.createRecipe(t, other, "Not yours", nil, nil)

	w := serveProtected(RecipeResource, apiRequest(t, http.MethodDelete, fmt.Sprintf("/api/recipe/recipes/%d/", foreign.ID), nil, user))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for another user's recipe, got %d", w.Code)
	}

	w = serveProtected(RecipeResource, apiRequest(t, http.MethodDelete, fmt.Sprintf("/api/recipe/recipes/%d/", recipe.ID), nil, user))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", w.Code, w.Body.String())
	}

	var recipes, tagLinks, ingredientLinks, tags int64
	env.db.Model(&models.Recipe{}).Where("id = ?", recipe.ID).Count(&recipes)
	env.db.Table("recipe_tags").Where("recipe_id = ?", recipe.ID).Count(&tagLinks)
	env.db.Table("recipe_ingredients").Where("recipe_id = ?", recipe.ID).Count(&ingredientLinks)
	env.db.Model(&models.Tag{}).Where("id = ?", tag.ID).Count(&tags)
	if recipes != 0 || tagLinks != 0 || ingredientLinks != 0 {
		t.Fatalf("expected recipe and join rows removed, got recipes=%d tags=%d ingredients=%d", recipes, tagLinks, ingredientLinks)
	}
	if tags != 1 {
		t.Fatal("expected the tag itself to survive")
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func imageUploadRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func withImageID(t *testing.T, id string) {
	t.Helper()
	original := models.NewImageID
	models.NewImageID = func() string { return id }
	t.Cleanup(func() { models.NewImageID = original })
}

func TestUploadRecipeImage(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	recipe := env.createRecipe(t, user, "Photogenic pie", nil, nil)
	target := fmt.Sprintf("/api/recipe/recipes/%d/upload-image/", recipe.ID)
	withImageID(t, "test-uuid")

	req := imageUploadRequest(t, target, "image", "myimage.png", pngHeader)
	req.Header.Set("Authorization", "Token "+tokenFor(t, user))
	w := serveProtected(RecipeResource, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[recipeImageResponse](t, w)
	if resp.Image == nil || *resp.Image != "/media/upload/recipe/test-uuid.png" {
		t.Fatalf("unexpected image url %v", resp.Image)
	}

	stored, err := os.ReadFile(filepath.Join(env.mediaRoot, "upload", "recipe", "test-uuid.png"))
	if err != nil {
		t.Fatalf("expected image file to be written: %v", err)
	}
	if !bytes.Equal(stored, pngHeader) {
		t.Fatal("stored image differs from the upload")
	}

	var reloaded models.Recipe
	env.db.First(&reloaded, recipe.ID)
	if reloaded.Image != "upload/recipe/test-uuid.png" {
		t.Fatalf("expected recipe image key to be stored, got %q", reloaded.Image)
	}

	// A second upload replaces the first file.
	withImageID(t, "second-uuid")
	req = imageUploadRequest(t, target, "image", "other.png", pngHeader)
	req.Header.Set("Authorization", "Token "+tokenFor(t, user))
	if w := serveProtected(RecipeResource, req); w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for replacement, got %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(env.mediaRoot, "upload", "recipe", "test-uuid.png")); !os.IsNotExist(err) {
		t.Fatalf("expected previous image to be deleted, stat error: %v", err)
	}
}

func TestUploadRecipeImageRejectsInvalidFiles(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	recipe := env.createRecipe(t, user, "Pie", nil, nil)
	target := fmt.Sprintf("/api/recipe/recipes/%d/upload-image/", recipe.ID)

	tests := []struct {
		name     string
		field    string
		filename string
		content  []byte
	}{
		{name: "not an image", field: "image", filename: "notes.txt", content: []byte("just some text")},
		{name: "wrong field", field: "photo", filename: "pie.png", content: pngHeader},
		{name: "empty file", field: "image", filename: "pie.png", content: nil},
		{name: "over size limit", field: "image", filename: "huge.png", content: append(append([]byte{}, pngHeader...), make([]byte, maxImageBytes)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := imageUploadRequest(t, target, tt.field, tt.filename, tt.content)
			req.Header.Set("Authorization", "Token "+tokenFor(t, user))
			w := serveProtected(RecipeResource, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
			if errs := decodeBody[map[string][]string](t, w); len(errs["image"]) == 0 {
				t.Fatalf("expected image error, got %+v", errs)
			}
		})
	}

	req := imageUploadRequest(t, target, "image", "pie.png", pngHeader)
	req.Method = http.MethodGet
	req.Header.Set("Authorization", "Token "+tokenFor(t, user))
	if w := serveProtected(RecipeResource, req); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405 for GET upload, got %d", w.Code)
	}
}
