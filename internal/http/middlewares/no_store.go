package middlewares

import "net/http"

// NoStore evita que proxies o el browser cacheen respuestas que
// derivan de material sensible (URLs de autorización, status de
// conexiones).
func NoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Pragma", "no-cache")
			next.ServeHTTP(w, r)
		})
	}
}
