package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"recipebox/internal/accounts"
	"recipebox/internal/auth"
	applog "recipebox/internal/log"
	"recipebox/internal/storage"
)

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB
	users          *accounts.Service
	tokens         *auth.Tokens
	media          storage.Storage
)

// Dependencies lists the shared services used by the HTTP handlers.
type Dependencies struct {
	Database *gorm.DB
	// Sessions backs the cookie sessions of the admin pages.
	Sessions *scs.SessionManager
	Tokens   *auth.Tokens
	Storage  storage.Storage
}

// Configure installs the shared dependencies used by the HTTP handlers.
func Configure(deps Dependencies) {
	database = deps.Database
	sessionManager = deps.Sessions
	tokens = deps.Tokens
	media = deps.Storage
	users = nil
	if deps.Database != nil {
		users = accounts.NewService(deps.Database)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusMethodNotAllowed, "Method \""+r.Method+"\" not allowed.")
}

func notFound(w http.ResponseWriter) {
	writeDetail(w, http.StatusNotFound, "Not found.")
}

// unavailable reports whether the handler dependencies are missing and, if so,
// answers with 503.
func unavailable(w http.ResponseWriter, r *http.Request) bool {
	if database != nil {
		return false
	}
	applog.Debug(r.Context(), "api request without database", "path", r.URL.Path)
	writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
	return true
}

// decodeJSON reads a JSON object into dst. Malformed bodies produce a field
// error map so they can be answered like validation failures.
func decodeJSON(r *http.Request, dst any) fieldErrors {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &typeErr) && typeErr.Field != "":
		field := typeErr.Field
		if idx := strings.Index(field, "."); idx > 0 {
			field = field[:idx]
		}
		return fieldErrors{field: {typeMessage(typeErr)}}
	default:
		return fieldErrors{"non_field_errors": {"JSON parse error - " + err.Error()}}
	}
}

func typeMessage(err *json.UnmarshalTypeError) string {
	switch err.Type.Kind() {
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return "A valid integer is required."
	case reflect.Slice:
		return "Expected a list of items but got type \"" + err.Value + "\"."
	case reflect.String:
		return "Not a valid string."
	default:
		return "Invalid value."
	}
}

// resourcePath splits the path below prefix into its segments.
func resourcePath(r *http.Request, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parseID(value string) (uint, bool) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
