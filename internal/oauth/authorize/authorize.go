// Package authorize builds provider authorization URLs for the start
// of the connect flow.
package authorize

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dropDatabas3/backvault/internal/oauth/pkce"
	"github.com/dropDatabas3/backvault/internal/oauth/providers"
	"github.com/dropDatabas3/backvault/internal/oauth/state"
)

// Builder assembles authorization URLs and the state records behind them.
type Builder struct {
	Registry *providers.Registry
	States   *state.Manager
}

// NewBuilder wires a Builder.
func NewBuilder(reg *providers.Registry, states *state.Manager) *Builder {
	return &Builder{Registry: reg, States: states}
}

// Build mints a state (and PKCE verifier unless the provider opts out),
// persists the pending record, and returns the URL to redirect the
// user to, plus the state token for logging/correlation.
func (b *Builder) Build(ctx context.Context, provider, redirectAfter string) (string, string, error) {
	cfg, err := b.Registry.Get(provider)
	if err != nil {
		return "", "", err
	}

	var verifier string
	if !cfg.Quirks.DisablePKCE {
		verifier, err = pkce.NewVerifier()
		if err != nil {
			return "", "", err
		}
	}

	var nonce string
	if cfg.Quirks.SendNonce {
		nonce, err = state.NewNonce()
		if err != nil {
			return "", "", err
		}
	}

	rec, err := b.States.Create(ctx, cfg.Name, verifier, redirectAfter, nonce)
	if err != nil {
		return "", "", err
	}

	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", cfg.RedirectURL)
	q.Set("response_type", "code")
	if len(cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	q.Set("state", rec.State)

	if verifier != "" {
		q.Set("code_challenge", pkce.Challenge(verifier))
		q.Set("code_challenge_method", pkce.Method)
	}
	if nonce != "" {
		q.Set("nonce", nonce)
	}
	for k, v := range cfg.Quirks.AuthParams {
		q.Set(k, v)
	}

	u, err := url.Parse(cfg.AuthURL)
	if err != nil {
		return "", "", fmt.Errorf("authorize: invalid auth URL for %s: %w", cfg.Name, err)
	}
	u.RawQuery = q.Encode()

	return u.String(), rec.State, nil
}
