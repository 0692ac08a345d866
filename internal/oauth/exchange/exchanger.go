// Package exchange talks to provider token endpoints: authorization
// code exchange, refresh, and best-effort revocation.
//
// Responses are classified into three error families (transient,
// permanent, protocol) so callers can decide between retrying, marking
// the connection dead, or just logging. No token material ever reaches
// an error message or a log line.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/backvault/internal/metrics"
	"github.com/dropDatabas3/backvault/internal/oauth/providers"
)

// Tokens is a provider token response, normalized.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// oauthErrorBody is the standard OAuth error response shape.
type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchanger performs token endpoint calls for any registered provider.
type Exchanger struct {
	reg    *providers.Registry
	client *http.Client
}

// New creates an Exchanger. timeout <= 0 defaults to 10s.
func New(reg *providers.Registry, timeout time.Duration) *Exchanger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Exchanger{
		reg:    reg,
		client: &http.Client{Timeout: timeout},
	}
}

// Exchange trades an authorization code for tokens. codeVerifier is
// empty for providers with PKCE disabled.
func (e *Exchanger) Exchange(ctx context.Context, provider, code, codeVerifier string) (Tokens, error) {
	cfg, err := e.reg.Get(provider)
	if err != nil {
		return Tokens{}, err
	}

	params := url.Values{}
	params.Set("grant_type", "authorization_code")
	params.Set("code", code)
	params.Set("redirect_uri", cfg.RedirectURL)
	params.Set("client_id", cfg.ClientID)
	params.Set("client_secret", cfg.ClientSecret)
	if codeVerifier != "" {
		params.Set("code_verifier", codeVerifier)
	}

	toks, err := e.call(ctx, cfg, "exchange", params)
	metrics.RecordExchange(cfg.Name, resultLabel(err))
	return toks, err
}

// Refresh obtains a new access token from a refresh token.
func (e *Exchanger) Refresh(ctx context.Context, provider, refreshToken string) (Tokens, error) {
	cfg, err := e.reg.Get(provider)
	if err != nil {
		return Tokens{}, err
	}

	params := url.Values{}
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", refreshToken)
	params.Set("client_id", cfg.ClientID)
	params.Set("client_secret", cfg.ClientSecret)

	toks, err := e.call(ctx, cfg, "refresh", params)
	metrics.RecordRefresh(cfg.Name, resultLabel(err))
	return toks, err
}

// Revoke asks the provider to invalidate the stored grant, best
// effort. Bearer-style endpoints (Dropbox) authenticate with the
// access token and kill the whole session in one call; form-style
// endpoints (RFC 7009) get one call per stored token. The returned
// bool reports whether the provider confirmed every attempted call;
// false with a nil error means there was nothing to revoke.
func (e *Exchanger) Revoke(ctx context.Context, provider, accessToken, refreshToken string) (bool, error) {
	cfg, err := e.reg.Get(provider)
	if err != nil {
		return false, err
	}
	if cfg.Quirks.RevokeStyle == providers.RevokeNone || cfg.RevokeURL == "" {
		return false, nil
	}

	var targets []string
	if cfg.Quirks.RevokeStyle == providers.RevokeBearer {
		// The refresh token is not a valid bearer credential here.
		if accessToken != "" {
			targets = append(targets, accessToken)
		}
	} else {
		// Refresh token first: it kills the grant even if the
		// access-token call fails afterwards.
		if refreshToken != "" {
			targets = append(targets, refreshToken)
		}
		if accessToken != "" {
			targets = append(targets, accessToken)
		}
	}
	if len(targets) == 0 {
		return false, nil
	}

	confirmed := true
	var firstErr error
	for _, tok := range targets {
		ok, err := e.revokeOnce(ctx, cfg, tok)
		confirmed = confirmed && ok
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return confirmed, firstErr
}

// revokeOnce performs a single revocation call for one token.
func (e *Exchanger) revokeOnce(ctx context.Context, cfg providers.Config, token string) (bool, error) {
	var req *http.Request
	var err error
	if cfg.Quirks.RevokeStyle == providers.RevokeBearer {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, cfg.RevokeURL, nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	} else {
		form := url.Values{}
		form.Set("token", token)
		form.Set("client_id", cfg.ClientID)
		form.Set("client_secret", cfg.ClientSecret)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, cfg.RevokeURL,
			strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return false, fmt.Errorf("exchange: building revoke request: %w", err)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	metrics.RecordProviderCall(cfg.Name, "revoke", time.Since(start))
	if err != nil {
		metrics.RecordRevoke(cfg.Name, "error")
		return false, &TransientError{Op: "revoke", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.RecordRevoke(cfg.Name, "ok")
		return true, nil
	}
	metrics.RecordRevoke(cfg.Name, "rejected")
	if resp.StatusCode >= 500 {
		return false, &TransientError{Op: "revoke",
			Err: fmt.Errorf("provider returned %d", resp.StatusCode)}
	}
	return false, &PermanentError{Op: "revoke", Status: resp.StatusCode, Code: "revocation_failed"}
}

// call performs one token endpoint request and classifies the outcome.
func (e *Exchanger) call(ctx context.Context, cfg providers.Config, op string, params url.Values) (Tokens, error) {
	var body io.Reader
	contentType := "application/x-www-form-urlencoded"

	if cfg.Quirks.TokenEncoding == providers.EncodingJSON {
		m := make(map[string]string, len(params))
		for k := range params {
			m[k] = params.Get(k)
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return Tokens{}, fmt.Errorf("exchange: encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, body)
	if err != nil {
		return Tokens{}, fmt.Errorf("exchange: building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	// GitHub answers form-encoded unless asked otherwise.
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	metrics.RecordProviderCall(cfg.Name, op, time.Since(start))
	if err != nil {
		return Tokens{}, &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Tokens{}, &TransientError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return Tokens{}, &TransientError{Op: op,
			Err: fmt.Errorf("provider returned %d", resp.StatusCode)}
	}

	if resp.StatusCode >= 400 {
		var oe oauthErrorBody
		if json.Unmarshal(raw, &oe) == nil && oe.Error != "" {
			return Tokens{}, &PermanentError{Op: op, Status: resp.StatusCode,
				Code: oe.Error, Description: oe.ErrorDescription}
		}
		return Tokens{}, &ProtocolError{Op: op, Status: resp.StatusCode,
			Reason: "4xx without an OAuth error body"}
	}

	var toks Tokens
	if err := json.Unmarshal(raw, &toks); err != nil {
		return Tokens{}, &ProtocolError{Op: op, Status: resp.StatusCode,
			Reason: "unparseable token response"}
	}

	// Some providers (GitHub) report errors in a 200 body.
	var oe oauthErrorBody
	if json.Unmarshal(raw, &oe) == nil && oe.Error != "" {
		return Tokens{}, &PermanentError{Op: op, Status: resp.StatusCode,
			Code: oe.Error, Description: oe.ErrorDescription}
	}

	if toks.AccessToken == "" {
		return Tokens{}, &ProtocolError{Op: op, Status: resp.StatusCode,
			Reason: "response carries no access token"}
	}
	if toks.TokenType == "" {
		toks.TokenType = "Bearer"
	}
	return toks, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransient(err):
		return "transient"
	case IsPermanent(err):
		return "permanent"
	default:
		return "protocol"
	}
}
