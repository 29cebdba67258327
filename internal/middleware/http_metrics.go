package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are reported under their own path.
var staticRoutes = map[string]bool{
	"/health":           true,
	"/ready":            true,
	"/metrics":          true,
	"/feed/recommended": true,
	"/feed/following":   true,
	"/feed/users":       true,
	"/posts":            true,
	"/posts/search":     true,
}

// normalizePath maps request paths to route patterns so that entity ids
// do not become label values. Unknown paths collapse to "other".
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "posts" && parts[1] != "":
		return "/posts/{id}"
	case len(parts) == 3 && parts[0] == "posts" && parts[1] != "" && parts[2] == "like":
		return "/posts/{id}/like"
	case len(parts) == 2 && parts[0] == "users" && parts[1] != "":
		return "/users/{id}"
	case len(parts) == 3 && parts[0] == "users" && parts[1] != "" && parts[2] == "follow":
		return "/users/{id}/follow"
	}
	return "other"
}

// HTTPMetrics records duration, count and sizes per method, route and status.
// Probe endpoints are not recorded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newStatusRecorder(w)
			next.ServeHTTP(rw, r)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(rw.status),
				time.Since(start).Seconds(),
				requestSize,
				rw.size,
			)
		})
	}
}
