package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"recipebox/internal/accounts"
)

func adminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(adminLoginPath, AdminLogin)
	mux.HandleFunc("/admin/logout/", AdminLogout)
	mux.Handle(adminHomePath, RequireStaff(http.HandlerFunc(AdminDashboard)))
	return sessionManager.LoadAndSave(mux)
}

func postLogin(t *testing.T, handler http.Handler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, adminLoginPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestAdminLoginRendersForm(t *testing.T) {
	withTestDependencies(t)

	w := httptest.NewRecorder()
	adminHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, adminLoginPath, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `name="password"`) {
		t.Fatalf("expected login form, got %s", w.Body.String())
	}
}

func TestAdminRequiresStaff(t *testing.T) {
	env := withTestDependencies(t)
	env.createUser(t, "chef@example.com")
	handler := adminHandler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, adminHomePath, nil))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != adminLoginPath {
		t.Fatalf("expected redirect to login, got %d %q", w.Code, w.Header().Get("Location"))
	}

	w = postLogin(t, handler, "chef@example.com", "testpass123")
	if w.Code != http.StatusOK {
		t.Fatalf("expected the form to be re-rendered for non-staff users, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "staff account") {
		t.Fatalf("expected staff error message, got %s", w.Body.String())
	}

	w = postLogin(t, handler, "chef@example.com", "wrong")
	if !strings.Contains(w.Body.String(), "staff account") {
		t.Fatalf("expected credential error message, got %s", w.Body.String())
	}
}

func TestAdminDashboardForStaff(t *testing.T) {
	env := withTestDependencies(t)
	user := env.createUser(t, "chef@example.com")
	env.createRecipe(t, user, "Soup", nil, nil)
	if _, err := accounts.NewService(env.db).CreateSuperuser(context.Background(), "admin@example.com", "adminpass"); err != nil {
		t.Fatalf("failed to create superuser: %v", err)
	}
	handler := adminHandler()

	w := postLogin(t, handler, "admin@example.com", "adminpass")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != adminHomePath {
		t.Fatalf("expected redirect to the dashboard, got %d %q", w.Code, w.Header().Get("Location"))
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, adminHomePath, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, token := range []string{"Site administration", "chef@example.com", "admin@example.com", "<dd>1</dd>"} {
		if !strings.Contains(body, token) {
			t.Fatalf("expected dashboard to contain %q: %s", token, body)
		}
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/logout/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect after logout, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, adminHomePath, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected the destroyed session to be rejected, got %d", w.Code)
	}
}

func TestAdminRevokesSessionWhenStaffAccessIsLost(t *testing.T) {
	tests := []struct {
		name   string
		column string
	}{
		{name: "de-staffed", column: "is_staff"},
		{name: "deactivated", column: "is_active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := withTestDependencies(t)
			admin, err := accounts.NewService(env.db).CreateUser(context.Background(), "staff@example.com", "staffpass", accounts.WithStaff())
			if err != nil {
				t.Fatalf("failed to create staff user: %v", err)
			}
			handler := adminHandler()

			w := postLogin(t, handler, "staff@example.com", "staffpass")
			if w.Code != http.StatusSeeOther {
				t.Fatalf("expected redirect after login, got %d", w.Code)
			}
			cookies := w.Result().Cookies()

			if err := env.db.Table("users").Where("id = ?", admin.ID).Update(tt.column, false).Error; err != nil {
				t.Fatalf("failed to update user: %v", err)
			}

			req := httptest.NewRequest(http.MethodGet, adminHomePath, nil)
			for _, c := range cookies {
				req.AddCookie(c)
			}
			w = httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusSeeOther || w.Header().Get("Location") != adminLoginPath {
				t.Fatalf("expected redirect to login, got %d %q", w.Code, w.Header().Get("Location"))
			}

			req = httptest.NewRequest(http.MethodGet, adminLoginPath, nil)
			for _, c := range cookies {
				req.AddCookie(c)
			}
			w = httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("expected the login form instead of a redirect loop, got %d", w.Code)
			}
		})
	}
}

func TestAdminRedirectUsesHTMXHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, adminHomePath, nil)
	req.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()
	redirectTo(w, req, adminLoginPath)
	if w.Header().Get("HX-Redirect") != adminLoginPath {
		t.Fatalf("expected HX-Redirect header, got %q", w.Header().Get("HX-Redirect"))
	}
}
