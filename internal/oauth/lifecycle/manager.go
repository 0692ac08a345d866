// Package lifecycle keeps stored connections usable: it hands out
// valid access tokens, refreshing behind the scenes, and tears
// connections down when the provider invalidates them.
//
// Concurrent refreshes for the same connection are collapsed into one
// provider call via singleflight; with rotating refresh tokens, two
// parallel refreshes would invalidate each other.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/backvault/internal/metrics"
	"github.com/dropDatabas3/backvault/internal/observability/logger"
	"github.com/dropDatabas3/backvault/internal/oauth/exchange"
	"github.com/dropDatabas3/backvault/internal/oauth/vault"
	"github.com/dropDatabas3/backvault/internal/security/secretbox"
)

// ErrAuthRequired means there is no usable connection: the user has
// to go through the authorization flow again. ErrAuthExpired and
// ErrAuthInvalid wrap it, so errors.Is(err, ErrAuthRequired) catches
// all three; callers that care can tell WHY the connection is gone.
var (
	ErrAuthRequired = errors.New("lifecycle: authentication required")

	// ErrAuthExpired: the grant died (provider invalidated it, or it
	// expired with nothing to refresh).
	ErrAuthExpired = fmt.Errorf("%w: grant expired", ErrAuthRequired)

	// ErrAuthInvalid: the stored record could not be read back
	// (key rotation, corrupt store). The record has been discarded.
	ErrAuthInvalid = fmt.Errorf("%w: stored credentials unreadable", ErrAuthRequired)
)

// DefaultRefreshBuffer: a token is treated as expired this long before
// its real expiry, so it never dies mid-upload.
const DefaultRefreshBuffer = 5 * time.Minute

// Refresher is the provider-facing surface the manager needs.
// *exchange.Exchanger satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, provider, refreshToken string) (exchange.Tokens, error)
	Revoke(ctx context.Context, provider, accessToken, refreshToken string) (bool, error)
}

// Manager drives token refresh and revocation over a Vault.
type Manager struct {
	vault     *vault.Vault
	refresher Refresher
	buffer    time.Duration

	group singleflight.Group
	now   func() time.Time

	// onDead runs when a connection is torn down because the provider
	// invalidated it. Used to fire ops alerts. May be nil.
	onDead func(provider, sessionKey string)
}

// New wires a Manager. buffer <= 0 defaults to DefaultRefreshBuffer.
func New(v *vault.Vault, r Refresher, buffer time.Duration) *Manager {
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	return &Manager{vault: v, refresher: r, buffer: buffer, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// OnDead registers a callback for dead connections.
func (m *Manager) OnDead(fn func(provider, sessionKey string)) *Manager {
	m.onDead = fn
	return m
}

// EnsureValid returns credentials with a usable access token,
// refreshing first if the stored one is expired or about to expire.
//
// A token with unknown expiry (zero ExpiresAt) is assumed valid; the
// consumer finds out from the provider API and reconnects if not.
func (m *Manager) EnsureValid(ctx context.Context, provider, sessionKey string) (vault.Credentials, error) {
	creds, err := m.vault.Get(ctx, provider, sessionKey)
	if errors.Is(err, vault.ErrNoRecord) {
		return vault.Credentials{}, ErrAuthRequired
	}
	if errors.Is(err, secretbox.ErrDecrypt) {
		return vault.Credentials{}, ErrAuthInvalid
	}
	if err != nil {
		return vault.Credentials{}, err
	}

	if !m.needsRefresh(creds) {
		return creds, nil
	}

	flightKey := provider + "|" + sessionKey
	res, err, shared := m.group.Do(flightKey, func() (any, error) {
		return m.refresh(ctx, provider, sessionKey)
	})
	if shared {
		metrics.RecordRefreshShared(provider)
	}
	if err != nil {
		return vault.Credentials{}, err
	}
	return res.(vault.Credentials), nil
}

// refresh runs inside the singleflight. It re-reads the vault first:
// a caller that queued behind a finished refresh gets the fresh token
// without a second provider call.
func (m *Manager) refresh(ctx context.Context, provider, sessionKey string) (vault.Credentials, error) {
	creds, err := m.vault.Get(ctx, provider, sessionKey)
	if errors.Is(err, vault.ErrNoRecord) {
		return vault.Credentials{}, ErrAuthRequired
	}
	if errors.Is(err, secretbox.ErrDecrypt) {
		return vault.Credentials{}, ErrAuthInvalid
	}
	if err != nil {
		return vault.Credentials{}, err
	}
	if !m.needsRefresh(creds) {
		return creds, nil
	}

	log := logger.From(ctx).With(
		logger.Component("lifecycle"),
		logger.Provider(provider),
		logger.SessionRef(sessionKey))

	if creds.RefreshToken == "" {
		// Expired and nothing to refresh with: the connection is dead.
		log.Warn("token expired with no refresh token, tearing down connection")
		m.teardown(ctx, provider, sessionKey)
		return vault.Credentials{}, ErrAuthExpired
	}

	toks, err := m.refresher.Refresh(ctx, provider, creds.RefreshToken)
	if err != nil {
		if exchange.IsPermanent(err) {
			log.Warn("provider invalidated the grant, tearing down connection",
				logger.ErrorClass("permanent"), logger.Err(err))
			m.teardown(ctx, provider, sessionKey)
			return vault.Credentials{}, fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}
		// Transient or protocol: keep the record, caller may retry.
		log.Warn("token refresh failed, keeping stored record", logger.Err(err))
		return vault.Credentials{}, err
	}

	if err := m.vault.Update(ctx, provider, sessionKey, toks); err != nil {
		return vault.Credentials{}, err
	}
	log.Info("token refreshed")

	return m.vault.Get(ctx, provider, sessionKey)
}

// Revoke disconnects a provider: best-effort provider-side revocation,
// then unconditional local deletion. The bool reports whether the
// provider confirmed; the local record is gone either way.
func (m *Manager) Revoke(ctx context.Context, provider, sessionKey string) (bool, error) {
	creds, err := m.vault.Get(ctx, provider, sessionKey)
	if errors.Is(err, vault.ErrNoRecord) || errors.Is(err, secretbox.ErrDecrypt) {
		// Nothing stored (or nothing readable): deletion already done
		// or done now.
		_ = m.vault.Delete(ctx, provider, sessionKey)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Both tokens go to the exchanger; it decides per provider how
	// many revocation calls that takes.
	confirmed, revokeErr := m.refresher.Revoke(ctx, provider, creds.AccessToken, creds.RefreshToken)

	if err := m.vault.Delete(ctx, provider, sessionKey); err != nil {
		return confirmed, err
	}

	if revokeErr != nil {
		logger.From(ctx).Warn("provider-side revocation failed, local record deleted anyway",
			logger.Component("lifecycle"),
			logger.Provider(provider),
			logger.SessionRef(sessionKey),
			logger.Err(revokeErr))
	}
	return confirmed, nil
}

func (m *Manager) needsRefresh(creds vault.Credentials) bool {
	if creds.ExpiresAt.IsZero() {
		return false
	}
	return !m.now().Add(m.buffer).Before(creds.ExpiresAt)
}

func (m *Manager) teardown(ctx context.Context, provider, sessionKey string) {
	_ = m.vault.Delete(ctx, provider, sessionKey)
	metrics.RecordDeadConnection(provider)
	if m.onDead != nil {
		m.onDead(provider, sessionKey)
	}
}
