package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/backvault/internal/observability/logger"
)

// Catálogo de errores de la API.
var (
	ErrUnknownProvider = &AppError{
		Code: "PROVIDER_UNKNOWN", Message: "Proveedor no soportado", HTTPStatus: http.StatusNotFound,
	}
	ErrProviderNotConfigured = &AppError{
		Code: "PROVIDER_NOT_CONFIGURED", Message: "Proveedor sin credenciales configuradas", HTTPStatus: http.StatusServiceUnavailable,
	}
	ErrAuthRequired = &AppError{
		Code: "AUTH_REQUIRED", Message: "No hay conexión activa con el proveedor", HTTPStatus: http.StatusUnauthorized,
	}
	ErrAuthExpired = &AppError{
		Code: "AUTH_EXPIRED", Message: "La conexión con el proveedor expiró", HTTPStatus: http.StatusUnauthorized,
	}
	ErrAuthInvalid = &AppError{
		Code: "AUTH_INVALID", Message: "La conexión guardada no se pudo leer, reconectá el proveedor", HTTPStatus: http.StatusUnauthorized,
	}
	ErrProviderUnavailable = &AppError{
		Code: "PROVIDER_UNAVAILABLE", Message: "El proveedor no responde, reintentá más tarde", HTTPStatus: http.StatusBadGateway,
	}
	ErrRateLimited = &AppError{
		Code: "RATE_LIMITED", Message: "Demasiados intentos, esperá un momento", HTTPStatus: http.StatusTooManyRequests,
	}
	ErrInternal = &AppError{
		Code: "INTERNAL", Message: "Error interno", HTTPStatus: http.StatusInternalServerError,
	}
)

// WriteError serializa un AppError. Cualquier otro error cae a
// ErrInternal sin filtrar la causa al cliente.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = ErrInternal.WithCause(err)
	}

	if appErr.HTTPStatus >= 500 {
		logger.From(r.Context()).Error("request failed",
			logger.Component("http"),
			logger.String("code", appErr.Code),
			logger.Err(appErr))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": appErr})
}
