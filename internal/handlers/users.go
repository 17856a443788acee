package handlers

import (
	"errors"
	"net/http"
	"strings"

	"recipebox/internal/accounts"
	"recipebox/internal/auth"
	applog "recipebox/internal/log"
	"recipebox/models"
)

type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type createUserRequest struct {
	Email    *string `json:"email" validate:"required,notblank,email,max=255"`
	Password *string `json:"password" validate:"required,min=5"`
	Name     *string `json:"name" validate:"required,notblank,max=255"`
}

type tokenRequest struct {
	Email    *string `json:"email" validate:"required,notblank"`
	Password *string `json:"password" validate:"required,notblank"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type profileRequest struct {
	Name     *string `json:"name" validate:"required,notblank,max=255"`
	Password *string `json:"password" validate:"required,min=5"`
}

type profilePatchRequest struct {
	Name     *string `json:"name" validate:"omitnil,notblank,max=255"`
	Password *string `json:"password" validate:"omitnil,min=5"`
}

func projectUser(user *models.User) userResponse {
	return userResponse{Email: user.Email, Name: user.Name}
}

// CreateUser registers a new account. The password is never echoed back.
func CreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if unavailable(w, r) {
		return
	}
	ctx := r.Context()

	var payload createUserRequest
	if errs := decodeJSON(r, &payload); errs != nil {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}
	if payload.Email != nil {
		email := strings.TrimSpace(*payload.Email)
		payload.Email = &email
	}
	if errs := validateRequest(&payload); errs != nil {
		applog.Debug(ctx, "invalid user registration", "fields", len(errs))
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	user, err := users.CreateUser(ctx, *payload.Email, *payload.Password, accounts.WithName(*payload.Name))
	switch {
	case errors.Is(err, accounts.ErrEmailTaken):
		writeJSON(w, http.StatusBadRequest, fieldErrors{"email": {"user with this email already exists."}})
		return
	case errors.Is(err, accounts.ErrEmailRequired):
		writeJSON(w, http.StatusBadRequest, fieldErrors{"email": {"This field may not be blank."}})
		return
	case err != nil:
		applog.Error(ctx, "failed to create user", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create user")
		return
	}

	applog.Info(ctx, "user registered", "userID", user.ID)
	writeJSON(w, http.StatusCreated, projectUser(user))
}

// UserToken issues tokens for valid credentials (POST) and revokes the
// presented token (DELETE).
func UserToken(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		issueToken(w, r)
	case http.MethodDelete:
		RequireToken(http.HandlerFunc(revokeToken)).ServeHTTP(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

func issueToken(w http.ResponseWriter, r *http.Request) {
	if unavailable(w, r) {
		return
	}
	if tokens == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "authentication not available")
		return
	}
	ctx := r.Context()

	var payload tokenRequest
	if errs := decodeJSON(r, &payload); errs != nil {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}
	if errs := validateRequest(&payload); errs != nil {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	user, err := users.Authenticate(ctx, *payload.Email, *payload.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			applog.Debug(ctx, "token requested with invalid credentials")
			writeJSON(w, http.StatusBadRequest, fieldErrors{"non_field_errors": {"Unable to authenticate with provided credentials"}})
			return
		}
		applog.Error(ctx, "failed to authenticate user", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to issue token")
		return
	}

	token, expiry, err := tokens.Issue(ctx, user.ID)
	if err != nil {
		applog.Error(ctx, "failed to issue token", "error", err, "userID", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to issue token")
		return
	}

	applog.Debug(ctx, "token issued", "userID", user.ID, "expiry", expiry)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func revokeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, err := auth.TokenFromRequest(r)
	if err != nil {
		rejectToken(w, r, err)
		return
	}
	if err := tokens.Revoke(ctx, token); err != nil {
		applog.Error(ctx, "failed to revoke token", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to revoke token")
		return
	}
	applog.Debug(ctx, "token revoked")
	writeJSON(w, http.StatusNoContent, nil)
}

// ManageUser reads and updates the authenticated user's profile. It must be
// wrapped by RequireToken.
func ManageUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		unauthorized(w, detailNotAuthenticated)
		return
	}
	ctx := r.Context()

	var changes accounts.ProfileUpdate
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		writeJSON(w, http.StatusOK, projectUser(user))
		return
	case http.MethodPut:
		var payload profileRequest
		if errs := decodeJSON(r, &payload); errs != nil {
			writeJSON(w, http.StatusBadRequest, errs)
			return
		}
		if errs := validateRequest(&payload); errs != nil {
			writeJSON(w, http.StatusBadRequest, errs)
			return
		}
		changes = accounts.ProfileUpdate{Name: payload.Name, Password: payload.Password}
	case http.MethodPatch:
		var payload profilePatchRequest
		if errs := decodeJSON(r, &payload); errs != nil {
			writeJSON(w, http.StatusBadRequest, errs)
			return
		}
		if errs := validateRequest(&payload); errs != nil {
			writeJSON(w, http.StatusBadRequest, errs)
			return
		}
		changes = accounts.ProfileUpdate{Name: payload.Name, Password: payload.Password}
	default:
		methodNotAllowed(w, r)
		return
	}

	if err := users.UpdateProfile(ctx, user, changes); err != nil {
		applog.Error(ctx, "failed to update profile", "error", err, "userID", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to update profile")
		return
	}
	applog.Debug(ctx, "profile updated", "userID", user.ID, "passwordChanged", changes.Password != nil)
	writeJSON(w, http.StatusOK, projectUser(user))
}
