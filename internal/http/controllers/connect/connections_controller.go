package connect

import (
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/backvault/internal/http/errors"
	"github.com/dropDatabas3/backvault/internal/http/helpers"
	"github.com/dropDatabas3/backvault/internal/http/middlewares"
	"github.com/dropDatabas3/backvault/internal/http/services/connect"
)

// ConnectionsController handles the status, listing, check and
// disconnect endpoints.
type ConnectionsController struct {
	svc connect.ConnectionsService
}

// NewConnectionsController builds the controller.
func NewConnectionsController(svc connect.ConnectionsService) *ConnectionsController {
	return &ConnectionsController{svc: svc}
}

// Status handles GET /auth/{provider}/status.
func (c *ConnectionsController) Status(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	sessionKey := middlewares.GetSession(r.Context())

	st, err := c.svc.Status(r.Context(), sessionKey, provider)
	if err != nil {
		if errors.Is(err, connect.ErrUnknownProvider) {
			httperrors.WriteError(w, r, httperrors.ErrUnknownProvider.WithDetail(provider))
			return
		}
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, st)
}

// List handles GET /auth/providers.
func (c *ConnectionsController) List(w http.ResponseWriter, r *http.Request) {
	sessionKey := middlewares.GetSession(r.Context())

	infos, err := c.svc.Providers(r.Context(), sessionKey)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"providers": infos})
}

// Disconnect handles DELETE /auth/{provider}.
func (c *ConnectionsController) Disconnect(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	sessionKey := middlewares.GetSession(r.Context())

	revoked, err := c.svc.Disconnect(r.Context(), sessionKey, provider)
	if err != nil {
		if errors.Is(err, connect.ErrUnknownProvider) {
			httperrors.WriteError(w, r, httperrors.ErrUnknownProvider.WithDetail(provider))
			return
		}
		httperrors.WriteError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"disconnected":       true,
		"provider_confirmed": revoked,
	})
}

// Check handles GET /auth/{provider}/check: verifies the connection
// can produce a valid token right now (refreshing if needed) without
// ever exposing the token.
func (c *ConnectionsController) Check(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	sessionKey := middlewares.GetSession(r.Context())

	err := c.svc.Check(r.Context(), sessionKey, provider)
	switch {
	case err == nil:
		helpers.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	case errors.Is(err, connect.ErrUnknownProvider):
		httperrors.WriteError(w, r, httperrors.ErrUnknownProvider.WithDetail(provider))
	case errors.Is(err, connect.ErrConnectionInvalid):
		httperrors.WriteError(w, r, httperrors.ErrAuthInvalid.WithDetail(provider))
	case errors.Is(err, connect.ErrConnectionExpired):
		httperrors.WriteError(w, r, httperrors.ErrAuthExpired.WithDetail(provider))
	case errors.Is(err, connect.ErrNotConnected):
		httperrors.WriteError(w, r, httperrors.ErrAuthRequired.WithDetail(provider))
	default:
		httperrors.WriteError(w, r, httperrors.ErrProviderUnavailable.WithCause(err))
	}
}
