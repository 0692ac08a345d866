package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes crea un campo para los bytes de respuesta.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO (conexiones OAuth)
// =================================================================================

// Provider crea un campo para el proveedor de almacenamiento (dropbox, gdrive...).
func Provider(v string) zap.Field {
	return zap.String("provider", v)
}

// SessionRef crea un campo con una referencia NO reversible a la sesión.
// Sólo se loguea un prefijo del SHA-256 del session key, nunca el valor crudo.
func SessionRef(sessionKey string) zap.Field {
	sum := sha256.Sum256([]byte(sessionKey))
	return zap.String("session_ref", hex.EncodeToString(sum[:4]))
}

// ErrorClass crea un campo para la clasificación del error (transient, permanent...).
func ErrorClass(v string) zap.Field {
	return zap.String("error_class", v)
}

// State crea un campo para el estado del ciclo de vida de un token.
func State(v string) zap.Field {
	return zap.String("state", v)
}

// ExpiresAt crea un campo para la expiración de un token.
func ExpiresAt(v time.Time) zap.Field {
	return zap.Time("expires_at", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// CAMPOS GENÉRICOS
// =================================================================================

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
