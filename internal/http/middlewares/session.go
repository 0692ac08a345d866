package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/backvault/internal/observability/logger"
)

type sessionKey struct{}

// SessionConfig configura la cookie de sesión del dashboard.
type SessionConfig struct {
	CookieName string
	SigningKey []byte
	TTL        time.Duration
	Secure     bool
}

// Session identifica al usuario del dashboard con un JWT HS256 en una
// cookie. Si no hay cookie (o no valida), se emite una sesión nueva:
// el dashboard no tiene login propio, la sesión solo aísla las
// conexiones de cada browser.
func Session(cfg SessionConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				sid = parseSession(c.Value, cfg.SigningKey)
			}

			if sid == "" {
				sid = uuid.NewString()
				token, err := mintSession(sid, cfg.SigningKey, cfg.TTL)
				if err != nil {
					logger.From(r.Context()).Error("no se pudo firmar la sesión", logger.Err(err))
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extrae el ID de sesión del contexto.
func GetSession(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKey{}).(string); ok {
		return v
	}
	return ""
}

func mintSession(sid string, key []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid": sid,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// parseSession valida el JWT y retorna el sid, o "" si no valida.
func parseSession(raw string, key []byte) string {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return ""
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sid, _ := claims["sid"].(string)
	return sid
}
