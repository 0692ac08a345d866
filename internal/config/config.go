// Package config carga y valida la configuración del servicio.
//
// La configuración base vive en un archivo YAML; los secretos y overrides
// puntuales llegan por variables de entorno (ver applyEnv).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración raíz del servicio.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Session SessionConfig `yaml:"session"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Rate    RateConfig    `yaml:"rate"`
}

// AppConfig define identidad y entorno de la aplicación.
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`       // dev | prod
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// ServerConfig define el listener HTTP.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// BaseURL es la URL pública del servicio, usada para armar redirect URIs.
	BaseURL string `yaml:"base_url"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// CacheConfig define el store de estados y tokens.
type CacheConfig struct {
	// Kind: memory | redis | postgres
	Kind string `yaml:"kind"`

	Redis    RedisConfig    `yaml:"redis"`
	Memory   MemoryConfig   `yaml:"memory"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type MemoryConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// OAuthConfig define tiempos del flujo de autorización y refresh.
type OAuthConfig struct {
	// StateTTL es la vida útil de un state pendiente. Default: 10m.
	StateTTL time.Duration `yaml:"state_ttl"`
	// RefreshBuffer: un token se considera vencido este margen antes de
	// su expiración real. Default: 5m.
	RefreshBuffer time.Duration `yaml:"refresh_buffer"`
	// HTTPTimeout para llamadas a endpoints de los providers. Default: 10s.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// EncryptionKey cifra los tokens en reposo. SOLO por env (ENCRYPTION_KEY).
	EncryptionKey string `yaml:"-"`
}

// SessionConfig define la cookie de sesión del dashboard.
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
	// SigningKey firma el JWT de sesión. SOLO por env (SESSION_SIGNING_KEY).
	SigningKey string `yaml:"-"`
}

// SMTPConfig define el relay de correo para alertas operativas.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// AlertsConfig define a quién avisar cuando una conexión muere.
type AlertsConfig struct {
	Enabled bool     `yaml:"enabled"`
	To      []string `yaml:"to"`
}

// RateConfig define el rate limit de los endpoints de auth.
type RateConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
}

// Load lee el YAML en path (si existe), aplica defaults y overrides de entorno.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: leyendo %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parseando %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "backvault"
	}
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 20 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == 0 {
		c.Cache.Memory.DefaultTTL = 24 * time.Hour
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "backvault:"
	}
	if c.OAuth.StateTTL == 0 {
		c.OAuth.StateTTL = 10 * time.Minute
	}
	if c.OAuth.RefreshBuffer == 0 {
		c.OAuth.RefreshBuffer = 5 * time.Minute
	}
	if c.OAuth.HTTPTimeout == 0 {
		c.OAuth.HTTPTimeout = 10 * time.Second
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "bv_session"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 30 * 24 * time.Hour
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Rate.Limit == 0 {
		c.Rate.Limit = 30
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
}

// applyEnv pisa la config con variables de entorno.
// Los secretos (ENCRYPTION_KEY, SESSION_SIGNING_KEY, credenciales de
// providers) viven SOLO en el entorno, nunca en el YAML.
func (c *Config) applyEnv() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("CACHE_KIND"); v != "" {
		c.Cache.Kind = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Cache.Postgres.DSN = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.OAuth.EncryptionKey = v
	}
	if v := os.Getenv("SESSION_SIGNING_KEY"); v != "" {
		c.Session.SigningKey = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("ALERTS_TO"); v != "" {
		c.Alerts.To = splitAndTrim(v)
		c.Alerts.Enabled = true
	}
}

func (c *Config) validate() error {
	switch c.Cache.Kind {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("config: cache.kind inválido: %q", c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.kind=redis requiere redis.addr o REDIS_ADDR")
	}
	if c.Cache.Kind == "postgres" && c.Cache.Postgres.DSN == "" {
		return fmt.Errorf("config: cache.kind=postgres requiere postgres.dsn o DATABASE_URL")
	}
	if c.IsProd() {
		if c.OAuth.EncryptionKey == "" {
			return fmt.Errorf("config: ENCRYPTION_KEY es obligatoria en prod")
		}
		if c.Session.SigningKey == "" {
			return fmt.Errorf("config: SESSION_SIGNING_KEY es obligatoria en prod")
		}
	}
	return nil
}

// IsProd indica si corremos en producción.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
