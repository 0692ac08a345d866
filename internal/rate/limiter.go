// Package rate implementa rate limiting de ventana fija sobre el
// cache.Client del servicio, así el límite es compartido entre
// instancias cuando el driver es redis o postgres.
package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dropDatabas3/backvault/internal/cache"
)

// Limiter decide si una clave (IP, sesión) puede seguir pegando.
type Limiter interface {
	// Allow retorna true si la clave todavía tiene presupuesto en la
	// ventana actual. Ante error del store se permite el request:
	// preferimos degradar el límite antes que tirar el flujo de auth.
	Allow(ctx context.Context, key string) bool
}

// FixedWindow cuenta requests por clave en ventanas alineadas.
type FixedWindow struct {
	store  cache.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewFixedWindow crea un limiter de ventana fija.
func NewFixedWindow(store cache.Client, limit int, window time.Duration) *FixedWindow {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindow{store: store, limit: limit, window: window, now: time.Now}
}

// WithClock fija la fuente de tiempo. Hook de tests.
func (l *FixedWindow) WithClock(now func() time.Time) *FixedWindow {
	l.now = now
	return l
}

func (l *FixedWindow) Allow(ctx context.Context, key string) bool {
	bucket := l.now().Unix() / int64(l.window.Seconds())
	storeKey := fmt.Sprintf("rate:%s:%d", key, bucket)

	raw, err := l.store.Get(ctx, storeKey)
	count := 0
	if err == nil {
		count, _ = strconv.Atoi(raw)
	} else if !cache.IsNotFound(err) {
		return true
	}

	if count >= l.limit {
		return false
	}

	// Get+Set no es atómico; bajo carga el conteo puede quedar corto.
	// Para limitar abuso del flujo de auth alcanza y sobra.
	if err := l.store.Set(ctx, storeKey, strconv.Itoa(count+1), l.window+time.Second); err != nil {
		return true
	}
	return true
}
