// Package providers holds the static catalog of supported storage
// providers and their OAuth endpoints.
//
// Provider differences are expressed as data (Quirks), never as
// per-provider branches in the flow code. Adding a provider means
// adding a table entry, not touching the exchange or authorize logic.
package providers

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnknownProvider indicates a provider name outside the catalog.
var ErrUnknownProvider = errors.New("providers: unknown provider")

// TokenEncoding says how a provider's token endpoint wants its request body.
type TokenEncoding string

const (
	EncodingForm TokenEncoding = "form" // application/x-www-form-urlencoded (the RFC default)
	EncodingJSON TokenEncoding = "json" // application/json
)

// RevokeStyle says how a provider's revocation endpoint is called.
type RevokeStyle string

const (
	RevokeNone   RevokeStyle = "none"   // provider has no revocation endpoint
	RevokeForm   RevokeStyle = "form"   // POST token=... as a form (RFC 7009)
	RevokeBearer RevokeStyle = "bearer" // POST with Authorization: Bearer <token>, empty body
)

// Quirks captures per-provider deviations from the baseline
// authorization-code-with-PKCE flow.
type Quirks struct {
	// DisablePKCE skips code_challenge/code_verifier entirely.
	DisablePKCE bool

	// TokenEncoding for the token endpoint request body.
	TokenEncoding TokenEncoding

	// AuthParams are extra query parameters for the authorization URL
	// (e.g. access_type=offline for Google).
	AuthParams map[string]string

	// RevokeStyle for best-effort revocation on disconnect.
	RevokeStyle RevokeStyle

	// SendNonce adds an OIDC nonce to the authorization request.
	SendNonce bool
}

// Config is everything the flow needs to talk to one provider.
type Config struct {
	Name        string
	DisplayName string

	AuthURL   string
	TokenURL  string
	RevokeURL string

	ClientID     string
	ClientSecret string
	Scopes       []string
	RedirectURL  string

	Quirks Quirks
}

// Configured reports whether the provider has credentials set.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Registry resolves provider names to their configuration.
type Registry struct {
	byName map[string]Config
	names  []string
}

// NewRegistry builds the catalog. baseURL is the public URL of this
// service, used to derive each provider's redirect URL. Credentials and
// endpoint overrides come from the environment (see fromEnv).
func NewRegistry(baseURL string) *Registry {
	baseURL = strings.TrimRight(baseURL, "/")

	catalog := []Config{
		{
			Name:        "dropbox",
			DisplayName: "Dropbox",
			AuthURL:     "https://www.dropbox.com/oauth2/authorize",
			TokenURL:    "https://api.dropboxapi.com/oauth2/token",
			RevokeURL:   "https://api.dropboxapi.com/2/auth/token/revoke",
			Scopes:      []string{"files.content.write", "files.content.read"},
			Quirks: Quirks{
				// Dropbox app-auth works without PKCE; their console
				// flow predates widespread S256 support.
				DisablePKCE:   true,
				TokenEncoding: EncodingForm,
				AuthParams:    map[string]string{"token_access_type": "offline"},
				RevokeStyle:   RevokeBearer,
			},
		},
		{
			Name:        "gdrive",
			DisplayName: "Google Drive",
			AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:    "https://oauth2.googleapis.com/token",
			RevokeURL:   "https://oauth2.googleapis.com/revoke",
			Scopes:      []string{"https://www.googleapis.com/auth/drive.file"},
			Quirks: Quirks{
				TokenEncoding: EncodingForm,
				// Google only hands out a refresh token with
				// access_type=offline, and only on re-consent.
				AuthParams:  map[string]string{"access_type": "offline", "prompt": "consent"},
				RevokeStyle: RevokeForm,
				SendNonce:   true,
			},
		},
		{
			Name:        "github",
			DisplayName: "GitHub",
			AuthURL:     "https://github.com/login/oauth/authorize",
			TokenURL:    "https://github.com/login/oauth/access_token",
			Scopes:      []string{"repo"},
			Quirks: Quirks{
				TokenEncoding: EncodingForm,
				RevokeStyle:   RevokeNone,
			},
		},
		{
			Name:        "onedrive",
			DisplayName: "OneDrive",
			AuthURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
			TokenURL:    "https://login.microsoftonline.com/common/oauth2/v2.0/token",
			Scopes:      []string{"Files.ReadWrite", "offline_access"},
			Quirks: Quirks{
				TokenEncoding: EncodingForm,
				RevokeStyle:   RevokeNone,
				SendNonce:     true,
			},
		},
	}

	r := &Registry{byName: make(map[string]Config, len(catalog))}
	for _, c := range catalog {
		c = fromEnv(c, baseURL)
		r.byName[c.Name] = c
		r.names = append(r.names, c.Name)
	}
	return r
}

// fromEnv fills credentials and applies endpoint overrides from the
// environment. Endpoint overrides exist so integration tests can point
// a provider at an httptest server.
func fromEnv(c Config, baseURL string) Config {
	prefix := strings.ToUpper(c.Name)

	c.ClientID = os.Getenv(prefix + "_CLIENT_ID")
	c.ClientSecret = os.Getenv(prefix + "_CLIENT_SECRET")

	c.RedirectURL = fmt.Sprintf("%s/auth/%s/callback", baseURL, c.Name)
	if v := os.Getenv(prefix + "_REDIRECT_URL"); v != "" {
		c.RedirectURL = v
	}
	if v := os.Getenv(prefix + "_AUTH_URL"); v != "" {
		c.AuthURL = v
	}
	if v := os.Getenv(prefix + "_TOKEN_URL"); v != "" {
		c.TokenURL = v
	}
	if v := os.Getenv(prefix + "_REVOKE_URL"); v != "" {
		c.RevokeURL = v
	}
	return c
}

// Get returns the config for name, or ErrUnknownProvider.
func (r *Registry) Get(name string) (Config, error) {
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return c, nil
}

// Names returns all catalog names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Available returns the names of providers with credentials configured.
func (r *Registry) Available() []string {
	var out []string
	for _, n := range r.names {
		if r.byName[n].Configured() {
			out = append(out, n)
		}
	}
	return out
}

// MissingFields describes an incomplete provider configuration.
type MissingFields struct {
	Provider string
	Fields   []string
}

// ValidateAll reports which providers are missing credentials.
// Used at startup to log (not fail) on partially configured catalogs.
func (r *Registry) ValidateAll() []MissingFields {
	var out []MissingFields
	for _, n := range r.names {
		c := r.byName[n]
		var missing []string
		if c.ClientID == "" {
			missing = append(missing, "client_id")
		}
		if c.ClientSecret == "" {
			missing = append(missing, "client_secret")
		}
		if len(missing) > 0 {
			out = append(out, MissingFields{Provider: n, Fields: missing})
		}
	}
	return out
}
