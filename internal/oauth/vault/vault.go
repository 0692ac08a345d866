// Package vault persists provider tokens encrypted at rest.
//
// A stored record only ever carries ciphertext envelopes; plaintext
// tokens exist as short-lived Credentials values handed to callers and
// never touch the store or the logs.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/backvault/internal/cache"
	"github.com/dropDatabas3/backvault/internal/observability/logger"
	"github.com/dropDatabas3/backvault/internal/oauth/exchange"
	"github.com/dropDatabas3/backvault/internal/security/secretbox"
)

// ErrNoRecord indicates no stored connection for that provider/session.
var ErrNoRecord = errors.New("vault: no stored record")

const keyPrefix = "oauthtok:"

// Record is the at-rest shape. Token fields hold secretbox envelopes.
type Record struct {
	AccessTokenEnc  string    `json:"access_token_enc"`
	RefreshTokenEnc string    `json:"refresh_token_enc,omitempty"`
	IDTokenEnc      string    `json:"id_token_enc,omitempty"`
	TokenType       string    `json:"token_type"`
	Scope           string    `json:"scope,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Credentials is the in-memory, decrypted view. Treat as ephemeral.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

// Meta is the decrypt-free view for status endpoints.
type Meta struct {
	Connected       bool      `json:"connected"`
	TokenType       string    `json:"token_type,omitempty"`
	Scope           string    `json:"scope,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
	HasRefreshToken bool      `json:"has_refresh_token"`
}

// Vault stores and retrieves encrypted token records.
type Vault struct {
	store cache.Client
	box   *secretbox.Box
	now   func() time.Time
}

// New wires a Vault.
func New(store cache.Client, box *secretbox.Box) *Vault {
	return &Vault{store: store, box: box, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (v *Vault) WithClock(now func() time.Time) *Vault {
	v.now = now
	return v
}

func storageKey(provider, sessionKey string) string {
	return keyPrefix + provider + ":" + sessionKey
}

// Store encrypts and persists a fresh token response.
func (v *Vault) Store(ctx context.Context, provider, sessionKey string, toks exchange.Tokens) error {
	rec, err := v.encrypt(toks, Record{})
	if err != nil {
		return err
	}
	return v.put(ctx, provider, sessionKey, rec)
}

// Update merges a refresh response over the existing record. When the
// provider omits a refresh token in the response, the stored one is
// kept (most providers only hand the refresh token out once).
func (v *Vault) Update(ctx context.Context, provider, sessionKey string, toks exchange.Tokens) error {
	raw, err := v.store.Get(ctx, storageKey(provider, sessionKey))
	var prev Record
	if err == nil {
		if uerr := json.Unmarshal([]byte(raw), &prev); uerr != nil {
			prev = Record{}
		}
	} else if !cache.IsNotFound(err) {
		return fmt.Errorf("vault: reading record: %w", err)
	}

	rec, err := v.encrypt(toks, prev)
	if err != nil {
		return err
	}
	return v.put(ctx, provider, sessionKey, rec)
}

// Get decrypts the stored record. A record that fails decryption (key
// rotated, corrupt store) is discarded and reported as ErrDecrypt: the
// user has to reconnect, stale ciphertext is useless.
func (v *Vault) Get(ctx context.Context, provider, sessionKey string) (Credentials, error) {
	key := storageKey(provider, sessionKey)

	raw, err := v.store.Get(ctx, key)
	if cache.IsNotFound(err) {
		return Credentials{}, ErrNoRecord
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("vault: reading record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		_ = v.store.Delete(ctx, key)
		return Credentials{}, secretbox.ErrDecrypt
	}

	creds, err := v.decrypt(rec)
	if err != nil {
		logger.From(ctx).Warn("stored token record failed decryption, discarding",
			logger.Component("vault"),
			logger.Provider(provider),
			logger.SessionRef(sessionKey))
		_ = v.store.Delete(ctx, key)
		return Credentials{}, err
	}
	return creds, nil
}

// Meta returns connection metadata without touching ciphertext.
func (v *Vault) Meta(ctx context.Context, provider, sessionKey string) (Meta, error) {
	raw, err := v.store.Get(ctx, storageKey(provider, sessionKey))
	if cache.IsNotFound(err) {
		return Meta{Connected: false}, nil
	}
	if err != nil {
		return Meta{}, fmt.Errorf("vault: reading record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Meta{Connected: false}, nil
	}
	return Meta{
		Connected:       true,
		TokenType:       rec.TokenType,
		Scope:           rec.Scope,
		ExpiresAt:       rec.ExpiresAt,
		UpdatedAt:       rec.UpdatedAt,
		HasRefreshToken: rec.RefreshTokenEnc != "",
	}, nil
}

// Delete removes the stored record. Idempotent.
func (v *Vault) Delete(ctx context.Context, provider, sessionKey string) error {
	return v.store.Delete(ctx, storageKey(provider, sessionKey))
}

func (v *Vault) put(ctx context.Context, provider, sessionKey string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("vault: marshaling record: %w", err)
	}
	// Records live until disconnect; refresh tokens have no known TTL.
	if err := v.store.Set(ctx, storageKey(provider, sessionKey), string(raw), 0); err != nil {
		return fmt.Errorf("vault: persisting record: %w", err)
	}
	return nil
}

// encrypt builds a Record from a token response, falling back to the
// previous record's refresh/id token envelopes when the response
// omits them.
func (v *Vault) encrypt(toks exchange.Tokens, prev Record) (Record, error) {
	now := v.now().UTC()

	rec := Record{
		TokenType: toks.TokenType,
		Scope:     toks.Scope,
		UpdatedAt: now,
	}
	if rec.TokenType == "" {
		rec.TokenType = prev.TokenType
	}
	if rec.Scope == "" {
		rec.Scope = prev.Scope
	}
	if toks.ExpiresIn > 0 {
		rec.ExpiresAt = now.Add(time.Duration(toks.ExpiresIn) * time.Second)
	}

	var err error
	if rec.AccessTokenEnc, err = v.box.Encrypt(toks.AccessToken); err != nil {
		return Record{}, fmt.Errorf("vault: encrypting access token: %w", err)
	}

	switch {
	case toks.RefreshToken != "":
		if rec.RefreshTokenEnc, err = v.box.Encrypt(toks.RefreshToken); err != nil {
			return Record{}, fmt.Errorf("vault: encrypting refresh token: %w", err)
		}
	case prev.RefreshTokenEnc != "":
		rec.RefreshTokenEnc = prev.RefreshTokenEnc
	}

	switch {
	case toks.IDToken != "":
		if rec.IDTokenEnc, err = v.box.Encrypt(toks.IDToken); err != nil {
			return Record{}, fmt.Errorf("vault: encrypting id token: %w", err)
		}
	case prev.IDTokenEnc != "":
		rec.IDTokenEnc = prev.IDTokenEnc
	}

	return rec, nil
}

func (v *Vault) decrypt(rec Record) (Credentials, error) {
	creds := Credentials{
		TokenType: rec.TokenType,
		Scope:     rec.Scope,
		ExpiresAt: rec.ExpiresAt,
	}

	var err error
	if creds.AccessToken, err = v.box.Decrypt(rec.AccessTokenEnc); err != nil {
		return Credentials{}, err
	}
	if rec.RefreshTokenEnc != "" {
		if creds.RefreshToken, err = v.box.Decrypt(rec.RefreshTokenEnc); err != nil {
			return Credentials{}, err
		}
	}
	if rec.IDTokenEnc != "" {
		if creds.IDToken, err = v.box.Decrypt(rec.IDTokenEnc); err != nil {
			return Credentials{}, err
		}
	}
	return creds, nil
}
