// Package metrics exposes prometheus collectors for the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipebox_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recipebox_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipebox_auth_failures_total",
		Help: "Rejected API authentications by reason",
	}, []string{"reason"})

	imageUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recipebox_image_upload_bytes",
		Help:    "Size of uploaded recipe images",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6),
	})
)

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuthFailure counts a rejected authentication attempt.
func ObserveAuthFailure(reason string) {
	authFailures.WithLabelValues(reason).Inc()
}

// ObserveImageUpload records the size of a stored recipe image.
func ObserveImageUpload(size int64) {
	imageUploadBytes.Observe(float64(size))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records request counts and latency for every request. Prefixes
// names extra mounted subtrees (media, the metrics endpoint) that are labelled
// as a whole.
func Middleware(next http.Handler, prefixes ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := Route(r.URL.Path, prefixes...)
		requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// OtherRoute labels every path outside the registered API.
const OtherRoute = "other"

var (
	fixedRoutes = map[string]string{
		"/healthz":          "/healthz",
		"/api/user/create/": "/api/user/create/",
		"/api/user/token/":  "/api/user/token/",
		"/api/user/me/":     "/api/user/me/",
		"/admin/login/":     "/admin/login/",
		"/admin/logout/":    "/admin/logout/",
	}
	recipeResources = map[string]bool{"tags": true, "ingredients": true, "recipes": true}
)

// Route maps path onto the fixed set of registered routes so label cardinality
// stays bounded: "/api/recipe/recipes/12/upload-image/" becomes
// "/api/recipe/recipes/{id}/upload-image/" and unknown paths become OtherRoute.
func Route(path string, prefixes ...string) string {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if path == prefix || (strings.HasSuffix(prefix, "/") && strings.HasPrefix(path, prefix)) {
			return prefix
		}
	}
	canonical := path
	if !strings.HasSuffix(canonical, "/") && canonical != "/healthz" {
		canonical += "/"
	}
	if route, ok := fixedRoutes[canonical]; ok {
		return route
	}
	if strings.HasPrefix(canonical, "/admin/") {
		return "/admin/"
	}
	if rest, ok := strings.CutPrefix(canonical, "/api/recipe/"); ok {
		return recipeRoute(strings.Split(strings.TrimSuffix(rest, "/"), "/"))
	}
	return OtherRoute
}

func recipeRoute(segments []string) string {
	if len(segments) == 0 || !recipeResources[segments[0]] {
		return OtherRoute
	}
	base := "/api/recipe/" + segments[0] + "/"
	if len(segments) == 1 {
		return base
	}
	if _, err := strconv.ParseUint(segments[1], 10, 64); err != nil {
		return OtherRoute
	}
	switch {
	case len(segments) == 2:
		return base + "{id}/"
	case len(segments) == 3 && segments[0] == "recipes" && segments[2] == "upload-image":
		return base + "{id}/upload-image/"
	}
	return OtherRoute
}
