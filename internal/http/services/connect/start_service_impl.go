package connect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/backvault/internal/metrics"
	"github.com/dropDatabas3/backvault/internal/observability/logger"
	"github.com/dropDatabas3/backvault/internal/oauth/providers"
)

type startService struct {
	deps Deps
}

// NewStartService builds the StartService implementation.
func NewStartService(deps Deps) StartService {
	return &startService{deps: deps}
}

func (s *startService) Start(ctx context.Context, provider, redirectAfter string) (StartResult, error) {
	cfg, err := s.deps.Registry.Get(provider)
	if errors.Is(err, providers.ErrUnknownProvider) {
		return StartResult{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if err != nil {
		return StartResult{}, err
	}
	if !cfg.Configured() {
		return StartResult{}, fmt.Errorf("%w: %s", ErrProviderNotReady, cfg.Name)
	}

	// Only relative paths survive: an absolute redirect_after would be
	// an open-redirect hole.
	redirectAfter = sanitizeRedirect(redirectAfter)

	url, stateToken, err := s.deps.Builder.Build(ctx, cfg.Name, redirectAfter)
	if err != nil {
		return StartResult{}, err
	}

	metrics.RecordStateIssued(cfg.Name)
	logger.From(ctx).Info("authorization flow started",
		logger.Component("connect.start"),
		logger.Provider(cfg.Name))

	return StartResult{AuthorizationURL: url, State: stateToken}, nil
}

func sanitizeRedirect(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return "/"
	}
	return p
}
