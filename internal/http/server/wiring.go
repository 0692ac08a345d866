// Package server arma el handler HTTP completo del servicio a partir
// de la configuración: stores, registry, flujo OAuth, rutas y
// middlewares globales.
package server

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/backvault/internal/alerts"
	"github.com/dropDatabas3/backvault/internal/cache"
	"github.com/dropDatabas3/backvault/internal/config"
	connectctrl "github.com/dropDatabas3/backvault/internal/http/controllers/connect"
	"github.com/dropDatabas3/backvault/internal/http/helpers"
	"github.com/dropDatabas3/backvault/internal/http/middlewares"
	"github.com/dropDatabas3/backvault/internal/http/router"
	connectsvc "github.com/dropDatabas3/backvault/internal/http/services/connect"
	"github.com/dropDatabas3/backvault/internal/metrics"
	"github.com/dropDatabas3/backvault/internal/observability/logger"
	"github.com/dropDatabas3/backvault/internal/oauth/authorize"
	"github.com/dropDatabas3/backvault/internal/oauth/exchange"
	"github.com/dropDatabas3/backvault/internal/oauth/lifecycle"
	"github.com/dropDatabas3/backvault/internal/oauth/providers"
	"github.com/dropDatabas3/backvault/internal/oauth/state"
	"github.com/dropDatabas3/backvault/internal/oauth/vault"
	"github.com/dropDatabas3/backvault/internal/rate"
	"github.com/dropDatabas3/backvault/internal/security/secretbox"
)

// App agrupa lo que main necesita además del handler.
type App struct {
	Handler http.Handler
	Store   cache.Client
}

// Build construye la aplicación completa.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	metrics.Init()

	store, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	var box *secretbox.Box
	if cfg.OAuth.EncryptionKey != "" {
		box, err = secretbox.New(cfg.OAuth.EncryptionKey)
		if err != nil {
			return nil, err
		}
	} else {
		// validate() ya garantizó que en prod hay clave.
		logger.L().Warn("sin ENCRYPTION_KEY: usando clave efímera, los tokens no sobreviven reinicios",
			logger.Component("server"))
		box = secretbox.NewEphemeral()
	}

	reg := providers.NewRegistry(cfg.Server.BaseURL)
	for _, m := range reg.ValidateAll() {
		logger.L().Warn("provider sin configurar",
			logger.Component("server"),
			logger.Provider(m.Provider),
			logger.Any("missing", m.Fields))
	}

	states := state.NewManager(store, cfg.OAuth.StateTTL)
	builder := authorize.NewBuilder(reg, states)
	exchanger := exchange.New(reg, cfg.OAuth.HTTPTimeout)
	tokenVault := vault.New(store, box)

	mailer := alerts.New(cfg.SMTP, cfg.Alerts)
	lifecycleMgr := lifecycle.New(tokenVault, exchanger, cfg.OAuth.RefreshBuffer).
		OnDead(func(provider, _ string) { go mailer.ConnectionLost(provider) })

	deps := connectsvc.Deps{
		Registry:  reg,
		States:    states,
		Builder:   builder,
		Exchanger: exchanger,
		Vault:     tokenVault,
		Lifecycle: lifecycleMgr,
	}
	controllers := connectctrl.New(deps)

	sessionMW := middlewares.Session(middlewares.SessionConfig{
		CookieName: cfg.Session.CookieName,
		SigningKey: sessionSigningKey(cfg),
		TTL:        cfg.Session.TTL,
		Secure:     cfg.IsProd(),
	})

	var rateMW middlewares.Middleware
	if cfg.Rate.Enabled {
		rateMW = middlewares.RateLimit(rate.NewFixedWindow(store, cfg.Rate.Limit, cfg.Rate.Window))
	} else {
		rateMW = middlewares.RateLimit(nil)
	}

	mux := http.NewServeMux()
	router.RegisterConnectRoutes(mux, controllers, router.RouteOptions{
		Session:   sessionMW,
		RateLimit: rateMW,
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			helpers.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"})
			return
		}
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	handler := middlewares.Chain(mux,
		middlewares.Recover(),
		middlewares.RequestID(),
		middlewares.SecurityHeaders(),
	)

	return &App{Handler: handler, Store: store}, nil
}

func sessionSigningKey(cfg *config.Config) []byte {
	if cfg.Session.SigningKey != "" {
		return []byte(cfg.Session.SigningKey)
	}
	// Solo dev: clave derivada fija para no invalidar la cookie en
	// cada reinicio local.
	return []byte("backvault-dev-session-key")
}
