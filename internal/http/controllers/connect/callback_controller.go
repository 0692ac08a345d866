package connect

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/backvault/internal/http/middlewares"
	"github.com/dropDatabas3/backvault/internal/http/services/connect"
)

// CallbackController handles GET /auth/{provider}/callback.
//
// The callback lands the user's browser here, so failures redirect
// back to the dashboard with an error code in the query string instead
// of rendering JSON at a dead end.
type CallbackController struct {
	svc connect.CallbackService
}

// NewCallbackController builds the controller.
func NewCallbackController(svc connect.CallbackService) *CallbackController {
	return &CallbackController{svc: svc}
}

func (c *CallbackController) Handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := connect.CallbackInput{
		Provider:      r.PathValue("provider"),
		Code:          q.Get("code"),
		State:         q.Get("state"),
		ProviderError: q.Get("error"),
	}
	sessionKey := middlewares.GetSession(r.Context())

	res, err := c.svc.Complete(r.Context(), sessionKey, in)
	if err != nil {
		redirectWithError(w, r, in.Provider, errorCode(err))
		return
	}

	redirectTo := res.RedirectTo + separatorFor(res.RedirectTo) + "connected=" + url.QueryEscape(res.Provider)
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, connect.ErrMissingParameters):
		return "missing_parameters"
	case errors.Is(err, connect.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, connect.ErrExpiredState):
		return "expired_state"
	case errors.Is(err, connect.ErrProviderMismatch):
		return "invalid_state"
	case errors.Is(err, connect.ErrProviderDown):
		return "provider_unavailable"
	case errors.Is(err, connect.ErrExchangeRejected):
		return "exchange_failed"
	case errors.Is(err, connect.ErrStorage):
		return "token_storage_failed"
	default:
		return "internal_error"
	}
}

func redirectWithError(w http.ResponseWriter, r *http.Request, provider, code string) {
	target := "/?connect_error=" + url.QueryEscape(code)
	if provider != "" {
		target += "&provider=" + url.QueryEscape(provider)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func separatorFor(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '?' {
			return "&"
		}
	}
	return "?"
}
