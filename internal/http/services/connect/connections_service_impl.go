package connect

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/backvault/internal/observability/logger"
	"github.com/dropDatabas3/backvault/internal/oauth/lifecycle"
	"github.com/dropDatabas3/backvault/internal/oauth/providers"
)

type connectionsService struct {
	deps Deps
}

// NewConnectionsService builds the ConnectionsService implementation.
func NewConnectionsService(deps Deps) ConnectionsService {
	return &connectionsService{deps: deps}
}

func (s *connectionsService) Status(ctx context.Context, sessionKey, provider string) (ConnectionStatus, error) {
	cfg, err := s.deps.Registry.Get(provider)
	if errors.Is(err, providers.ErrUnknownProvider) {
		return ConnectionStatus{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if err != nil {
		return ConnectionStatus{}, err
	}

	meta, err := s.deps.Vault.Meta(ctx, cfg.Name, sessionKey)
	if err != nil {
		return ConnectionStatus{}, err
	}
	return ConnectionStatus{
		Provider:    cfg.Name,
		DisplayName: cfg.DisplayName,
		Meta:        meta,
	}, nil
}

func (s *connectionsService) Providers(ctx context.Context, sessionKey string) ([]ProviderInfo, error) {
	names := s.deps.Registry.Names()
	out := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		cfg, err := s.deps.Registry.Get(name)
		if err != nil {
			return nil, err
		}
		meta, err := s.deps.Vault.Meta(ctx, name, sessionKey)
		if err != nil {
			return nil, err
		}
		out = append(out, ProviderInfo{
			Name:        cfg.Name,
			DisplayName: cfg.DisplayName,
			Configured:  cfg.Configured(),
			Connected:   meta.Connected,
		})
	}
	return out, nil
}

func (s *connectionsService) Disconnect(ctx context.Context, sessionKey, provider string) (bool, error) {
	cfg, err := s.deps.Registry.Get(provider)
	if errors.Is(err, providers.ErrUnknownProvider) {
		return false, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if err != nil {
		return false, err
	}

	revoked, err := s.deps.Lifecycle.Revoke(ctx, cfg.Name, sessionKey)
	if err != nil {
		return revoked, err
	}

	logger.From(ctx).Info("provider disconnected",
		logger.Component("connect.connections"),
		logger.Provider(cfg.Name),
		logger.SessionRef(sessionKey),
		logger.Bool("provider_confirmed", revoked))
	return revoked, nil
}

// Check verifies the connection can produce a valid access token right
// now, refreshing if needed. The token itself never leaves the service.
func (s *connectionsService) Check(ctx context.Context, sessionKey, provider string) error {
	cfg, err := s.deps.Registry.Get(provider)
	if errors.Is(err, providers.ErrUnknownProvider) {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if err != nil {
		return err
	}

	_, err = s.deps.Lifecycle.EnsureValid(ctx, cfg.Name, sessionKey)
	// Specific failures first: both wrap ErrAuthRequired.
	switch {
	case errors.Is(err, lifecycle.ErrAuthInvalid):
		return ErrConnectionInvalid
	case errors.Is(err, lifecycle.ErrAuthExpired):
		return ErrConnectionExpired
	case errors.Is(err, lifecycle.ErrAuthRequired):
		return ErrNotConnected
	}
	return err
}
