package manager

import (
	"context"
	"fmt"

	"github.com/emberhome/ember/internal/auth/provider"
	"github.com/emberhome/ember/internal/auth/user"
	apperrors "github.com/emberhome/ember/internal/platform/errors"
)

// ErrLoginNotCompleted indicates a login attempt was finished from a result
// that did not complete the negotiation.
var ErrLoginNotCompleted = apperrors.New(apperrors.CodeValidation, "login attempt did not complete")

// LoginAttempt is one in-flight authentication against a single provider.
// Discarding an attempt before a terminal result leaves no trace in the
// entity graph.
type LoginAttempt struct {
	provider *managedProvider
	flow     provider.Flow
}

// Resume advances the attempt's negotiation with caller-supplied input.
func (a *LoginAttempt) Resume(ctx context.Context, input map[string]any) (provider.Result, error) {
	return a.flow.Resume(ctx, input)
}

// Provider returns the provider driving the attempt.
func (a *LoginAttempt) Provider() provider.Provider {
	return a.provider.Provider
}

// BeginLogin starts a login attempt against the provider with the given
// key. The provider is initialized exactly once, lazily, before its first
// attempt.
func (m *Manager) BeginLogin(ctx context.Context, key provider.Key) (*LoginAttempt, error) {
	p, ok := m.providers[key]
	if !ok {
		return nil, ErrProviderNotRegistered
	}
	if err := p.initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize auth provider %s: %w", key.Type, err)
	}
	flow, err := p.CredentialFlow(ctx)
	if err != nil {
		return nil, fmt.Errorf("start credential flow for %s: %w", key.Type, err)
	}
	return &LoginAttempt{provider: p, flow: flow}, nil
}

// FinishLogin turns a completed result into credentials via the attempt's
// provider. Any other terminal outcome yields no credentials and no side
// effects.
func (m *Manager) FinishLogin(ctx context.Context, attempt *LoginAttempt, result provider.Result) (*user.Credentials, error) {
	if attempt == nil {
		return nil, fmt.Errorf("login attempt is required")
	}
	if result.Kind != provider.ResultCompleted {
		return nil, ErrLoginNotCompleted
	}
	creds, err := attempt.provider.GetOrCreateCredentials(ctx, result.Payload)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}
	return creds, nil
}
