package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/backvault/internal/config"
)

// pgClient implementa Client sobre Postgres (pgx).
// Útil cuando ya hay un Postgres en la infraestructura y no se quiere
// sumar Redis solo para esto. Requiere Sweep periódico.
type pgClient struct {
	pool *pgxpool.Pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS backvault_kv (
    k          text PRIMARY KEY,
    v          text NOT NULL,
    expires_at timestamptz
);
CREATE INDEX IF NOT EXISTS backvault_kv_expires_idx ON backvault_kv (expires_at);
`

// NewPostgres crea un Client respaldado por Postgres y asegura el esquema.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig) (Client, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgClient{pool: pool}, nil
}

func (p *pgClient) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := p.pool.QueryRow(ctx,
		`SELECT v FROM backvault_kv
		 WHERE k = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (p *pgClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires any
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO backvault_kv (k, v, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, expires_at = EXCLUDED.expires_at`,
		key, value, expires,
	)
	return err
}

func (p *pgClient) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM backvault_kv WHERE k = $1`, key)
	return err
}

func (p *pgClient) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *pgClient) Close() error {
	p.pool.Close()
	return nil
}

// Sweep elimina entradas vencidas. Pensado para correr en un goroutine
// periódico desde main.
func (p *pgClient) Sweep(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM backvault_kv WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	return err
}
