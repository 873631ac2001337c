package api

import (
	"log"
	"net/http"
)

// Logger middleware logs each request's method and path.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// Recoverer middleware turns a panicking handler into a 500 response
// instead of taking down the server.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, errCodeInternal, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
