// Package router registra las rutas del servicio sobre el ServeMux
// estándar, usando los patrones con método y path params de Go 1.22.
package router

import (
	"net/http"

	connectctrl "github.com/dropDatabas3/backvault/internal/http/controllers/connect"
	"github.com/dropDatabas3/backvault/internal/http/middlewares"
)

// RouteOptions ajusta los middlewares por grupo de rutas.
type RouteOptions struct {
	Session   middlewares.Middleware
	RateLimit middlewares.Middleware
}

// RegisterConnectRoutes registra los endpoints de conexión de providers.
func RegisterConnectRoutes(mux *http.ServeMux, c *connectctrl.Controllers, opts RouteOptions) {
	// El flujo de autorización lleva rate limit: cada start pega al
	// store y cada callback al provider.
	flow := func(route string, h http.HandlerFunc) http.Handler {
		return middlewares.Chain(h,
			middlewares.Logging(route),
			opts.Session,
			opts.RateLimit,
			middlewares.NoStore(),
		)
	}
	// Las consultas de estado no; el dashboard las hace en cada render.
	query := func(route string, h http.HandlerFunc) http.Handler {
		return middlewares.Chain(h,
			middlewares.Logging(route),
			opts.Session,
			middlewares.NoStore(),
		)
	}

	mux.Handle("GET /auth/providers", query("/auth/providers", c.Connections.List))
	mux.Handle("GET /auth/{provider}", flow("/auth/{provider}", c.Start.Handle))
	mux.Handle("GET /auth/{provider}/callback", flow("/auth/{provider}/callback", c.Callback.Handle))
	mux.Handle("GET /auth/{provider}/status", query("/auth/{provider}/status", c.Connections.Status))
	mux.Handle("GET /auth/{provider}/check", query("/auth/{provider}/check", c.Connections.Check))
	mux.Handle("DELETE /auth/{provider}", query("/auth/{provider}", c.Connections.Disconnect))
}
