package server

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"recipebox/internal/handlers"
	applog "recipebox/internal/log"
	"recipebox/internal/metrics"
	"recipebox/internal/storage"
)

type routes struct {
	sessions *scs.SessionManager
	storage  storage.Storage
	metrics  MetricsConfig
}

func newRouter(cfg routes) http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")
	mux.HandleFunc("/healthz", handlers.Health)
	applog.Debug(context.Background(), "route registered", "path", "/healthz")

	mux.HandleFunc("/api/user/create/", handlers.CreateUser)
	mux.HandleFunc("/api/user/token/", handlers.UserToken)
	mux.Handle("/api/user/me/", handlers.RequireToken(http.HandlerFunc(handlers.ManageUser)))
	applog.Debug(context.Background(), "route registered", "path", "/api/user/")

	mux.Handle("/api/recipe/tags/", handlers.RequireToken(http.HandlerFunc(handlers.TagResource)))
	mux.Handle("/api/recipe/ingredients/", handlers.RequireToken(http.HandlerFunc(handlers.IngredientResource)))
	mux.Handle("/api/recipe/recipes/", handlers.RequireToken(http.HandlerFunc(handlers.RecipeResource)))
	applog.Debug(context.Background(), "route registered", "path", "/api/recipe/", "protected", true)

	if cfg.sessions != nil {
		mux.Handle("/admin/login/", cfg.sessions.LoadAndSave(http.HandlerFunc(handlers.AdminLogin)))
		mux.Handle("/admin/logout/", cfg.sessions.LoadAndSave(http.HandlerFunc(handlers.AdminLogout)))
		mux.Handle("/admin/", cfg.sessions.LoadAndSave(handlers.RequireStaff(http.HandlerFunc(handlers.AdminDashboard))))
		applog.Debug(context.Background(), "route registered", "path", "/admin/", "session", true)
	}

	var mounted []string
	if local, ok := cfg.storage.(*storage.Local); ok {
		mounted = append(mounted, local.BaseURL())
		mux.Handle(local.BaseURL(), local.Handler())
		applog.Debug(context.Background(), "route registered", "path", local.BaseURL(), "static", true)
	}

	if cfg.metrics.Enabled {
		mux.Handle(cfg.metrics.Path, metrics.Handler())
		applog.Debug(context.Background(), "route registered", "path", cfg.metrics.Path)
		return metrics.Middleware(mux, append(mounted, cfg.metrics.Path)...)
	}
	return mux
}
