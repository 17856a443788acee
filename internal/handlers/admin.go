package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"gorm.io/gorm"

	"recipebox/internal/accounts"
	applog "recipebox/internal/log"
	"recipebox/internal/views/components"
	"recipebox/internal/views/pages"
	"recipebox/models"
)

const (
	sessionAuthenticatedKey = "admin:authenticated"
	sessionLoginMessageKey  = "admin:message"
	sessionUserIDKey        = "admin:user:id"
	sessionUserEmailKey     = "admin:user:email"

	adminLoginPath = "/admin/login/"
	adminHomePath  = "/admin/"
)

// AdminLogin renders the staff sign-in form and processes submissions.
func AdminLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	applog.Debug(r.Context(), "handling admin login request", "method", r.Method, "htmx", isHTMX(r))

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if ActiveStaffSession(r) {
			redirectTo(w, r, adminHomePath)
			return
		}
		message := ""
		if sessionManager != nil {
			message = sessionManager.PopString(r.Context(), sessionLoginMessageKey)
		}
		renderComponent(w, r, loginComponent(r, message, ""))
	case http.MethodPost:
		if sessionManager == nil || users == nil {
			applog.Debug(r.Context(), "admin authentication dependencies unavailable", "hasSession", sessionManager != nil, "hasDatabase", users != nil)
			http.Error(w, "authentication not available", http.StatusServiceUnavailable)
			return
		}
		if err := r.ParseForm(); err != nil {
			applog.Debug(r.Context(), "failed to parse admin login form", "error", err)
			http.Error(w, "invalid form submission", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.PostFormValue("email"))
		password := r.PostFormValue("password")
		if email == "" || password == "" {
			renderComponent(w, r, loginComponent(r, "Email and password are required.", email))
			return
		}

		user, err := users.Authenticate(r.Context(), email, password)
		if err != nil {
			if !errors.Is(err, accounts.ErrInvalidCredentials) {
				applog.Error(r.Context(), "failed to authenticate staff member", "error", err)
			}
			renderComponent(w, r, loginComponent(r, "Please enter the correct email and password for a staff account.", email))
			return
		}
		if !user.IsStaff {
			applog.Debug(r.Context(), "non-staff admin login rejected", "userID", user.ID)
			renderComponent(w, r, loginComponent(r, "Please enter the correct email and password for a staff account.", email))
			return
		}

		if err := establishSession(r, user); err != nil {
			applog.Error(r.Context(), "failed to establish admin session", "error", err)
			renderComponent(w, r, loginComponent(r, "We were unable to sign you in. Please try again.", email))
			return
		}
		applog.Info(r.Context(), "staff member signed in", "userID", user.ID)
		redirectTo(w, r, adminHomePath)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func loginComponent(r *http.Request, message, email string) templ.Component {
	if isHTMX(r) {
		return pages.AdminLoginPartial(message, email)
	}
	return pages.AdminLogin(message, email)
}

func establishSession(r *http.Request, user *models.User) error {
	if sessionManager == nil {
		return errors.New("session manager not configured")
	}
	if err := sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	sessionManager.Put(r.Context(), sessionAuthenticatedKey, true)
	sessionManager.Put(r.Context(), sessionUserIDKey, int(user.ID))
	sessionManager.Put(r.Context(), sessionUserEmailKey, user.Email)
	return nil
}

// ActiveStaffSession reports whether the request carries a signed-in session
// whose user is still an active staff member.
func ActiveStaffSession(r *http.Request) bool {
	if sessionManager == nil || users == nil {
		return false
	}
	ctx := r.Context()
	if !sessionManager.GetBool(ctx, sessionAuthenticatedKey) {
		return false
	}
	userID := sessionManager.GetInt(ctx, sessionUserIDKey)
	if userID <= 0 {
		return false
	}
	user, err := users.FindByID(ctx, uint(userID))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Error(ctx, "failed to load staff member", "error", err, "userID", userID)
		}
		return false
	}
	return user.IsStaff && user.IsActive
}

// RequireStaff redirects requests without a staff session to the login form.
// Sessions of users that lost staff access are destroyed.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActiveStaffSession(r) {
			if sessionManager != nil && sessionManager.Exists(r.Context(), sessionUserIDKey) {
				applog.Info(r.Context(), "revoked admin session", "userID", sessionManager.GetInt(r.Context(), sessionUserIDKey))
				if err := sessionManager.Destroy(r.Context()); err != nil {
					applog.Error(r.Context(), "failed to destroy admin session", "error", err)
				}
			}
			redirectTo(w, r, adminLoginPath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminDashboard shows record counts and the user list.
func AdminDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != adminHomePath {
		http.NotFound(w, r)
		return
	}
	if database == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	data := pages.DashboardData{StaffEmail: sessionManager.GetString(ctx, sessionUserEmailKey)}
	counts := []struct {
		model any
		dest  *int64
	}{
		{&models.User{}, &data.Users},
		{&models.Recipe{}, &data.Recipes},
		{&models.Tag{}, &data.Tags},
		{&models.Ingredient{}, &data.Ingredients},
	}
	for _, c := range counts {
		if err := database.WithContext(ctx).Model(c.model).Count(c.dest).Error; err != nil {
			applog.Error(ctx, "failed to count records", "error", err)
			http.Error(w, "unable to load overview", http.StatusInternalServerError)
			return
		}
	}

	var accountsList []models.User
	if err := database.WithContext(ctx).Order("email asc").Find(&accountsList).Error; err != nil {
		applog.Error(ctx, "failed to list users", "error", err)
		http.Error(w, "unable to load overview", http.StatusInternalServerError)
		return
	}
	type recipeCount struct {
		UserID uint
		Total  int64
	}
	var perUser []recipeCount
	if err := database.WithContext(ctx).Model(&models.Recipe{}).
		Select("user_id, count(*) as total").Group("user_id").Scan(&perUser).Error; err != nil {
		applog.Error(ctx, "failed to count recipes per user", "error", err)
		http.Error(w, "unable to load overview", http.StatusInternalServerError)
		return
	}
	totals := make(map[uint]int64, len(perUser))
	for _, c := range perUser {
		totals[c.UserID] = c.Total
	}

	data.Rows = make([]components.UserRow, 0, len(accountsList))
	for _, u := range accountsList {
		data.Rows = append(data.Rows, components.UserRow{
			ID:          u.ID,
			Email:       u.Email,
			Name:        u.Name,
			Active:      u.IsActive,
			Staff:       u.IsStaff,
			Superuser:   u.IsSuperuser,
			Recipes:     totals[u.ID],
			JoinedOnUTC: u.CreatedAt.UTC().Format("2006-01-02"),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var component templ.Component
	if isHTMX(r) {
		component = pages.AdminDashboardPartial(data)
	} else {
		component = pages.AdminDashboard(data)
	}
	renderComponent(w, r, component)
}

// AdminLogout destroys the staff session and returns to the login form.
func AdminLogout(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if sessionManager != nil {
		if err := sessionManager.Destroy(r.Context()); err != nil {
			applog.Error(r.Context(), "failed to destroy admin session", "error", err)
		}
	}
	redirectTo(w, r, adminLoginPath)
}

func redirectTo(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func renderComponent(w http.ResponseWriter, r *http.Request, component templ.Component) {
	if err := component.Render(r.Context(), w); err != nil {
		applog.Error(r.Context(), "failed to render admin component", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
