package connect

import (
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/backvault/internal/http/errors"
	"github.com/dropDatabas3/backvault/internal/http/services/connect"
)

// StartController handles GET /auth/{provider}.
type StartController struct {
	svc connect.StartService
}

// NewStartController builds the controller.
func NewStartController(svc connect.StartService) *StartController {
	return &StartController{svc: svc}
}

func (c *StartController) Handle(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	redirectAfter := r.URL.Query().Get("redirect_after")

	res, err := c.svc.Start(r.Context(), provider, redirectAfter)
	if err != nil {
		switch {
		case errors.Is(err, connect.ErrUnknownProvider):
			httperrors.WriteError(w, r, httperrors.ErrUnknownProvider.WithDetail(provider))
		case errors.Is(err, connect.ErrProviderNotReady):
			httperrors.WriteError(w, r, httperrors.ErrProviderNotConfigured.WithDetail(provider))
		default:
			httperrors.WriteError(w, r, err)
		}
		return
	}

	http.Redirect(w, r, res.AuthorizationURL, http.StatusFound)
}
