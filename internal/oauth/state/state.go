// Package state manages the short-lived CSRF state records of pending
// authorization flows.
//
// A state token is minted when the user is sent to the provider and
// consumed exactly once when the callback arrives. Consumption deletes
// the record before returning it, so a replayed callback always fails.
package state

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/backvault/internal/cache"
)

var (
	// ErrNotFound: the state token does not exist or was already consumed.
	ErrNotFound = errors.New("state: not found or already used")
	// ErrExpired: the record exists but its TTL elapsed.
	ErrExpired = errors.New("state: expired")
)

const keyPrefix = "oauthstate:"

// DefaultTTL is how long a pending authorization stays valid.
const DefaultTTL = 10 * time.Minute

// Record is everything remembered between /auth/{provider} and the callback.
type Record struct {
	State             string    `json:"state"`
	CodeVerifier      string    `json:"code_verifier,omitempty"`
	Provider          string    `json:"provider"`
	RedirectAfterAuth string    `json:"redirect_after_auth,omitempty"`
	Nonce             string    `json:"nonce,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Manager mints and consumes state records on top of a cache.Client.
type Manager struct {
	store cache.Client
	ttl   time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewManager creates a Manager. ttl <= 0 falls back to DefaultTTL.
func NewManager(store cache.Client, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL returns the configured state lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create mints a fresh state token and persists the record under it.
// The returned Record carries the generated State.
func (m *Manager) Create(ctx context.Context, provider, codeVerifier, redirectAfter, nonce string) (Record, error) {
	token, err := newToken()
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		State:             token,
		CodeVerifier:      codeVerifier,
		Provider:          provider,
		RedirectAfterAuth: redirectAfter,
		Nonce:             nonce,
		CreatedAt:         m.now().UTC(),
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("state: marshaling record: %w", err)
	}

	// Store TTL gets a small grace so WE decide expiry by CreatedAt,
	// and an expired-but-present record can be told apart from a
	// missing one.
	if err := m.store.Set(ctx, keyPrefix+token, string(raw), m.ttl+time.Minute); err != nil {
		return Record{}, fmt.Errorf("state: persisting record: %w", err)
	}
	return rec, nil
}

// ValidateAndConsume looks up the record for token, deletes it, and
// returns it. The delete happens before any validation result is
// returned: success or failure, the token is spent.
func (m *Manager) ValidateAndConsume(ctx context.Context, token string) (Record, error) {
	if token == "" {
		return Record{}, ErrNotFound
	}
	key := keyPrefix + token

	raw, err := m.store.Get(ctx, key)
	if cache.IsNotFound(err) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("state: reading record: %w", err)
	}

	// Single use: gone before we even parse it.
	if err := m.store.Delete(ctx, key); err != nil {
		return Record{}, fmt.Errorf("state: consuming record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("state: corrupt record: %w", err)
	}

	if m.now().Sub(rec.CreatedAt) > m.ttl {
		return Record{}, ErrExpired
	}
	return rec, nil
}

// newToken returns 32 bytes of CSPRNG output, base64url without padding.
func newToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("state: reading entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NewNonce mints an OIDC nonce, same shape as a state token.
func NewNonce() (string, error) {
	return newToken()
}
