package middlewares

import (
	"net"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/backvault/internal/http/errors"
	"github.com/dropDatabas3/backvault/internal/rate"
)

// RateLimit corta con 429 cuando la IP agotó su presupuesto.
// Con limiter nil es un no-op.
func RateLimit(limiter rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), ClientIP(r)) {
				httperrors.WriteError(w, r, httperrors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resuelve la IP real del cliente, respetando X-Forwarded-For
// cuando venimos detrás de un proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
