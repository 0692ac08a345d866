// Package connect implements the dashboard-facing flows for linking
// storage providers: starting an authorization, completing the
// callback, inspecting and tearing down connections.
package connect

import (
	"context"
	"errors"

	"github.com/dropDatabas3/backvault/internal/oauth/authorize"
	"github.com/dropDatabas3/backvault/internal/oauth/exchange"
	"github.com/dropDatabas3/backvault/internal/oauth/lifecycle"
	"github.com/dropDatabas3/backvault/internal/oauth/providers"
	"github.com/dropDatabas3/backvault/internal/oauth/state"
	"github.com/dropDatabas3/backvault/internal/oauth/vault"
)

// Sentinel errors the controllers translate into HTTP responses.
var (
	ErrUnknownProvider   = errors.New("connect: unknown provider")
	ErrProviderNotReady  = errors.New("connect: provider not configured")
	ErrMissingParameters = errors.New("connect: callback missing code or state")
	ErrInvalidState      = errors.New("connect: invalid state")
	ErrExpiredState      = errors.New("connect: expired state")
	ErrProviderMismatch  = errors.New("connect: callback provider mismatch")
	ErrExchangeRejected  = errors.New("connect: provider rejected the exchange")
	ErrProviderDown      = errors.New("connect: provider unavailable")
	ErrStorage           = errors.New("connect: could not persist tokens")
	ErrNotConnected      = errors.New("connect: no active connection")
	ErrConnectionExpired = errors.New("connect: connection expired")
	ErrConnectionInvalid = errors.New("connect: stored connection unreadable")
)

// StartResult is the outcome of beginning an authorization flow.
type StartResult struct {
	// AuthorizationURL is where the user gets redirected.
	AuthorizationURL string
	// State correlates logs with the eventual callback.
	State string
}

// CallbackInput carries the provider callback query parameters.
type CallbackInput struct {
	Provider string
	Code     string
	State    string
	// ProviderError is the "error" query parameter, set when the user
	// denied access or the provider aborted.
	ProviderError string
}

// CallbackResult is the outcome of completing an authorization flow.
type CallbackResult struct {
	Provider string
	// RedirectTo is where to send the user next (from the state record).
	RedirectTo string
}

// ConnectionStatus is the decrypt-free view of one connection.
type ConnectionStatus struct {
	Provider    string     `json:"provider"`
	DisplayName string     `json:"display_name"`
	Meta        vault.Meta `json:"connection"`
}

// ProviderInfo describes one catalog entry for the dashboard.
type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Configured  bool   `json:"configured"`
	Connected   bool   `json:"connected"`
}

// StartService begins authorization flows.
type StartService interface {
	Start(ctx context.Context, provider, redirectAfter string) (StartResult, error)
}

// CallbackService completes authorization flows.
type CallbackService interface {
	Complete(ctx context.Context, sessionKey string, in CallbackInput) (CallbackResult, error)
}

// ConnectionsService inspects and tears down stored connections.
type ConnectionsService interface {
	Status(ctx context.Context, sessionKey, provider string) (ConnectionStatus, error)
	Providers(ctx context.Context, sessionKey string) ([]ProviderInfo, error)
	Disconnect(ctx context.Context, sessionKey, provider string) (revoked bool, err error)
	Check(ctx context.Context, sessionKey, provider string) error
}

// Deps is everything the service implementations need.
type Deps struct {
	Registry  *providers.Registry
	States    *state.Manager
	Builder   *authorize.Builder
	Exchanger *exchange.Exchanger
	Vault     *vault.Vault
	Lifecycle *lifecycle.Manager
}
