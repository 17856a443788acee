package handlers

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"recipebox/internal/auth"
	applog "recipebox/internal/log"
	"recipebox/internal/metrics"
	"recipebox/models"
)

const (
	detailNotAuthenticated = "Authentication credentials were not provided."
	detailInvalidToken     = "Invalid token."
	detailUserInactive     = "User inactive or deleted."
)

type userContextKey struct{}

// RequireToken authenticates API requests from their Authorization header and
// stores the resolved user in the request context.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if tokens == nil || users == nil {
			applog.Debug(ctx, "token authentication not configured")
			writeJSONError(w, http.StatusServiceUnavailable, "authentication not available")
			return
		}

		token, err := auth.TokenFromRequest(r)
		if err != nil {
			rejectToken(w, r, err)
			return
		}

		userID, err := tokens.Resolve(ctx, token)
		if err != nil {
			rejectToken(w, r, err)
			return
		}

		user, err := users.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rejectToken(w, r, auth.ErrInvalidToken)
				return
			}
			applog.Error(ctx, "failed to load token user", "error", err, "userID", userID)
			writeJSONError(w, http.StatusInternalServerError, "unable to authenticate request")
			return
		}
		if !user.IsActive {
			metrics.ObserveAuthFailure("inactive")
			unauthorized(w, detailUserInactive)
			return
		}

		ctx = applog.WithAttrs(ctx, "userID", user.ID)
		ctx = withUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func rejectToken(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		applog.Debug(r.Context(), "request without credentials", "path", r.URL.Path)
		metrics.ObserveAuthFailure("missing")
		unauthorized(w, detailNotAuthenticated)
	case errors.Is(err, auth.ErrInvalidToken):
		applog.Debug(r.Context(), "request with invalid token", "path", r.URL.Path)
		metrics.ObserveAuthFailure("invalid")
		unauthorized(w, detailInvalidToken)
	default:
		applog.Error(r.Context(), "failed to resolve token", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to authenticate request")
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Token")
	writeDetail(w, http.StatusUnauthorized, detail)
}

// currentUser returns the user attached by RequireToken.
func currentUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(userContextKey{}).(*models.User)
	return user, ok && user != nil
}

// withUser attaches user to ctx the way RequireToken does.
func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}
