package connect

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/backvault/internal/metrics"
	"github.com/dropDatabas3/backvault/internal/observability/logger"
	"github.com/dropDatabas3/backvault/internal/oauth/exchange"
	"github.com/dropDatabas3/backvault/internal/oauth/state"
)

type callbackService struct {
	deps Deps
}

// NewCallbackService builds the CallbackService implementation.
func NewCallbackService(deps Deps) CallbackService {
	return &callbackService{deps: deps}
}

func (s *callbackService) Complete(ctx context.Context, sessionKey string, in CallbackInput) (CallbackResult, error) {
	log := logger.From(ctx).With(
		logger.Component("connect.callback"),
		logger.Provider(in.Provider),
		logger.SessionRef(sessionKey))

	// A provider-reported error still burns the state if one came back.
	if in.ProviderError != "" {
		if in.State != "" {
			_, _ = s.deps.States.ValidateAndConsume(ctx, in.State)
		}
		log.Warn("provider aborted authorization", logger.String("provider_error", in.ProviderError))
		return CallbackResult{}, fmt.Errorf("%w: %s", ErrExchangeRejected, in.ProviderError)
	}

	if in.Code == "" || in.State == "" {
		return CallbackResult{}, ErrMissingParameters
	}

	// State validation comes FIRST: no exchange ever happens for an
	// unknown, reused, or expired state.
	rec, err := s.deps.States.ValidateAndConsume(ctx, in.State)
	switch {
	case errors.Is(err, state.ErrNotFound):
		metrics.RecordStateValidation("not_found")
		return CallbackResult{}, ErrInvalidState
	case errors.Is(err, state.ErrExpired):
		metrics.RecordStateValidation("expired")
		return CallbackResult{}, ErrExpiredState
	case err != nil:
		return CallbackResult{}, err
	}
	metrics.RecordStateValidation("ok")

	if rec.Provider != in.Provider {
		log.Warn("state was minted for another provider",
			logger.String("state_provider", rec.Provider))
		return CallbackResult{}, ErrProviderMismatch
	}

	toks, err := s.deps.Exchanger.Exchange(ctx, in.Provider, in.Code, rec.CodeVerifier)
	if err != nil {
		log.Warn("code exchange failed", logger.ErrorClass(classOf(err)), logger.Err(err))
		if exchange.IsTransient(err) {
			return CallbackResult{}, fmt.Errorf("%w: %v", ErrProviderDown, err)
		}
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrExchangeRejected, err)
	}

	if err := s.deps.Vault.Store(ctx, in.Provider, sessionKey, toks); err != nil {
		log.Error("persisting tokens failed", logger.Err(err))
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	log.Info("provider connected")

	redirect := rec.RedirectAfterAuth
	if redirect == "" {
		redirect = "/"
	}
	return CallbackResult{Provider: in.Provider, RedirectTo: redirect}, nil
}

func classOf(err error) string {
	switch {
	case exchange.IsTransient(err):
		return "transient"
	case exchange.IsPermanent(err):
		return "permanent"
	default:
		return "protocol"
	}
}
