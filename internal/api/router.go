package api

import (
	"context"
	"net/http"
	"strings"
)

// Router is a simple HTTP router with path parameter support, including a
// trailing "*name" wildcard segment that captures the remainder of the
// path (used by the exec endpoint for arbitrary stub paths).
type Router struct {
	routes []route
}

type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
}

type paramsKey struct{}

// NewRouter creates a new router
func NewRouter() *Router {
	return &Router{}
}

// Handle registers a route. An empty method matches any HTTP method.
func (rt *Router) Handle(method, pattern string, handler http.HandlerFunc) {
	rt.routes = append(rt.routes, route{method, pattern, handler})
}

// GET registers a GET route
func (rt *Router) GET(pattern string, handler http.HandlerFunc) {
	rt.Handle("GET", pattern, handler)
}

// ANY registers a route matched regardless of HTTP method.
func (rt *Router) ANY(pattern string, handler http.HandlerFunc) {
	rt.Handle("", pattern, handler)
}

// ServeHTTP implements http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, route := range rt.routes {
		if route.method != "" && route.method != r.Method {
			continue
		}

		params, ok := match(route.pattern, r.URL.Path)
		if !ok {
			continue
		}

		ctx := context.WithValue(r.Context(), paramsKey{}, params)
		route.handler(w, r.WithContext(ctx))
		return
	}

	writeError(w, http.StatusNotFound, errCodeNoMatch, "resource not found")
}

// match checks if a path matches a pattern and extracts parameters.
// Pattern format: /api/kolibri/exec/*path, or /metrics, or /{id}/thing.
// A trailing "*name" segment greedily captures the rest of the path.
func match(pattern, path string) (map[string]string, bool) {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")

	params := make(map[string]string)

	for i, part := range patternParts {
		if strings.HasPrefix(part, "*") {
			name := part[1:]
			params[name] = "/" + strings.Join(pathParts[i:], "/")
			return params, true
		}
		if i >= len(pathParts) {
			return nil, false
		}
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			params[part[1:len(part)-1]] = pathParts[i]
		} else if part != pathParts[i] {
			return nil, false
		}
	}

	if len(patternParts) != len(pathParts) {
		return nil, false
	}

	return params, true
}

// GetParam retrieves a path parameter extracted by the router.
func GetParam(r *http.Request, name string) string {
	params, _ := r.Context().Value(paramsKey{}).(map[string]string)
	return params[name]
}
