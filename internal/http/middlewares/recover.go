package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/backvault/internal/http/errors"
	"github.com/dropDatabas3/backvault/internal/observability/logger"
)

// Recover atrapa panics del handler y responde 500 en vez de tirar
// abajo la conexión.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recuperado",
						logger.Component("http"),
						logger.Any("panic", rec),
						logger.Path(r.URL.Path))
					httperrors.WriteError(w, r, httperrors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
