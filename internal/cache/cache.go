// Package cache define la interfaz de almacenamiento clave-valor del
// servicio y sus drivers (memory, redis, postgres).
//
// Todo lo que el servicio persiste (states pendientes, tokens cifrados)
// pasa por esta interfaz, así cambiar de driver es cuestión de config.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/backvault/internal/config"
)

// ErrNotFound indica que la clave no existe (o ya expiró).
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound reporta si err corresponde a una clave inexistente.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Client es la interfaz común de todos los drivers.
type Client interface {
	// Get retorna el valor de la clave, o ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda el valor con el TTL dado. ttl <= 0 significa sin expiración.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina la clave. Borrar una clave inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Ping verifica conectividad con el backend.
	Ping(ctx context.Context) error

	// Close libera recursos del cliente.
	Close() error
}

// Sweeper lo implementan los drivers que necesitan limpieza periódica
// de entradas vencidas (postgres). Redis y memory expiran solos.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// New construye el driver indicado por la configuración.
func New(ctx context.Context, cfg config.CacheConfig) (Client, error) {
	switch cfg.Kind {
	case "memory":
		return NewMemory(cfg.Memory.DefaultTTL), nil
	case "redis":
		return NewRedis(cfg.Redis)
	case "postgres":
		return NewPostgres(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("cache: driver desconocido %q", cfg.Kind)
	}
}
