// Package manager orchestrates providers, login flows, and the auth store.
// It is the single entry point external callers use.
package manager

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/emberhome/ember/internal/auth/provider"
	"github.com/emberhome/ember/internal/auth/store"
	"github.com/emberhome/ember/internal/auth/user"
	apperrors "github.com/emberhome/ember/internal/platform/errors"
	"github.com/emberhome/ember/internal/platform/id"
	"github.com/emberhome/ember/internal/platform/secret"
)

var (
	// ErrCredentialsNotFound indicates already-linked credentials have no
	// owning user in the store. This is an internal invariant violation,
	// not a normal login failure.
	ErrCredentialsNotFound = apperrors.New(apperrors.CodeNotFound, "credentials not found")

	// ErrProviderNotRegistered indicates no configured provider matches the
	// requested (type, id) key.
	ErrProviderNotRegistered = apperrors.New(apperrors.CodeProviderNotRegistered, "auth provider not registered")

	// ErrAccessTokenNotFound indicates the access token is unknown or has
	// expired and been evicted.
	ErrAccessTokenNotFound = apperrors.New(apperrors.CodeNotFound, "access token not found")

	// ErrUserInactive rejects refresh-token issuance for inactive users.
	ErrUserInactive = apperrors.New(apperrors.CodeValidation, "user is not active")

	// ErrSystemUserClientID rejects client-scoped refresh tokens for system
	// generated users.
	ErrSystemUserClientID = apperrors.New(apperrors.CodeValidation, "system generated users cannot have refresh tokens connected to a client")

	// ErrClientIDRequired rejects refresh tokens without a client for
	// regular users.
	ErrClientIDRequired = apperrors.New(apperrors.CodeValidation, "client is required to generate a refresh token")
)

// managedProvider wraps a provider with a guard so Initialize runs at most
// once per instance, even under concurrent first use.
type managedProvider struct {
	provider.Provider

	initOnce sync.Once
	initErr  error
}

func (p *managedProvider) initialize(ctx context.Context) error {
	p.initOnce.Do(func() {
		p.initErr = p.Provider.Initialize(ctx)
	})
	return p.initErr
}

// Manager orchestrates the auth subsystem: it resolves providers, drives
// login attempts, applies the token issuance rules, and holds the
// process-lifetime access-token index.
type Manager struct {
	store  *store.Store
	logger *log.Logger

	clock        func() time.Time
	idGenerator  func() (string, error)
	secretSource secret.Source

	providers map[provider.Key]*managedProvider
	order     []provider.Key

	tokenMu      sync.Mutex
	accessTokens map[string]*user.AccessToken
}

// New creates a manager over the given store and configured providers.
// Providers sharing a (type, id) key are a non-fatal conflict: the first
// wins and the duplicate is dropped with a log line.
func New(s *store.Store, providers []provider.Provider, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		store:        s,
		logger:       logger,
		clock:        time.Now,
		idGenerator:  id.NewID,
		secretSource: secret.New,
		providers:    make(map[provider.Key]*managedProvider, len(providers)),
		accessTokens: make(map[string]*user.AccessToken),
	}
	for _, p := range providers {
		key := provider.Key{Type: p.Type(), ID: p.ID()}
		if _, ok := m.providers[key]; ok {
			logger.Printf("found duplicate provider %s/%s, add unique IDs to configure the same provider twice: %v", key.Type, key.ID, provider.ErrDuplicateProvider)
			continue
		}
		m.providers[key] = &managedProvider{Provider: p}
		m.order = append(m.order, key)
	}
	return m
}

// Active reports whether at least one provider is configured.
func (m *Manager) Active() bool {
	return len(m.providers) > 0
}

// Providers returns the configured providers in configuration order.
func (m *Manager) Providers() []provider.Provider {
	out := make([]provider.Provider, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.providers[key].Provider)
	}
	return out
}

// Provider returns the configured provider for the given key.
func (m *Manager) Provider(key provider.Key) (provider.Provider, error) {
	p, ok := m.providers[key]
	if !ok {
		return nil, ErrProviderNotRegistered
	}
	return p.Provider, nil
}

// Users returns all users in creation order.
func (m *Manager) Users(ctx context.Context) ([]*user.User, error) {
	return m.store.Users(ctx)
}

// User returns the user with the given id.
func (m *Manager) User(ctx context.Context, userID string) (*user.User, error) {
	return m.store.User(ctx, userID)
}

// GetOrCreateUser resolves the user owning the given credentials.
//
// Already-linked credentials resolve to their existing owner; a miss is an
// internal invariant violation reported as ErrCredentialsNotFound. Fresh
// credentials create a new user: the owning provider is consulted for
// optional metadata, and if the store holds no users yet the new user
// atomically becomes owner and active. Every later flow-created user
// starts inactive and cannot hold refresh tokens until activated.
func (m *Manager) GetOrCreateUser(ctx context.Context, creds *user.Credentials) (*user.User, error) {
	if creds == nil {
		return nil, fmt.Errorf("credentials are required")
	}

	if !creds.IsNew {
		users, err := m.store.Users(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			for _, candidate := range u.Credentials {
				if candidate.ID == creds.ID {
					return u, nil
				}
			}
		}
		return nil, ErrCredentialsNotFound
	}

	p, ok := m.providers[provider.Key{Type: creds.AuthProviderType, ID: creds.AuthProviderID}]
	if !ok {
		return nil, ErrProviderNotRegistered
	}

	name := p.Name()
	if mp, ok := p.Provider.(provider.MetadataProvider); ok {
		meta, err := mp.UserMetadata(ctx, creds)
		if err != nil {
			return nil, fmt.Errorf("fetch user metadata: %w", err)
		}
		if meta.Name != "" {
			name = meta.Name
		}
	}

	return m.store.CreateUser(ctx, store.CreateUserInput{
		Name:         name,
		IsActive:     false,
		OwnerIfFirst: true,
		Credentials:  creds,
	})
}

// CreateUser creates a regular user. The first user created in an empty
// store becomes owner and active regardless of the creation path.
func (m *Manager) CreateUser(ctx context.Context, name string) (*user.User, error) {
	return m.store.CreateUser(ctx, store.CreateUserInput{
		Name:         name,
		IsActive:     true,
		OwnerIfFirst: true,
	})
}

// CreateSystemUser creates a non-interactive system user. System users are
// never owner.
func (m *Manager) CreateSystemUser(ctx context.Context, name string) (*user.User, error) {
	return m.store.CreateUser(ctx, store.CreateUserInput{
		Name:            name,
		IsActive:        true,
		SystemGenerated: true,
	})
}

// LinkUser attaches credentials to a user.
func (m *Manager) LinkUser(ctx context.Context, u *user.User, creds *user.Credentials) error {
	return m.store.LinkUser(ctx, u, creds)
}

// RemoveUser removes a user. Every provider owning one of the user's
// credentials is notified first; a hook failure propagates and halts the
// removal with no rollback of hooks already run, so a failed removal must
// be treated as possibly partial.
func (m *Manager) RemoveUser(ctx context.Context, u *user.User) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	for _, creds := range u.Credentials {
		if err := m.notifyCredentialsRemoval(ctx, creds); err != nil {
			return err
		}
	}
	if err := m.store.RemoveUser(ctx, u); err != nil {
		return err
	}
	m.evictUserAccessTokens(u.ID)
	return nil
}

// RemoveCredentials detaches credentials from their user, notifying the
// owning provider first.
func (m *Manager) RemoveCredentials(ctx context.Context, creds *user.Credentials) error {
	if creds == nil {
		return fmt.Errorf("credentials are required")
	}
	if err := m.notifyCredentialsRemoval(ctx, creds); err != nil {
		return err
	}
	return m.store.RemoveCredentials(ctx, creds)
}

// notifyCredentialsRemoval invokes the owning provider's removal hook, if
// the provider is still configured and observes removals.
func (m *Manager) notifyCredentialsRemoval(ctx context.Context, creds *user.Credentials) error {
	p, ok := m.providers[provider.Key{Type: creds.AuthProviderType, ID: creds.AuthProviderID}]
	if !ok {
		return nil
	}
	observer, ok := p.Provider.(provider.RemovalObserver)
	if !ok {
		return nil
	}
	if err := observer.WillRemoveCredentials(ctx, creds); err != nil {
		return fmt.Errorf("remove credentials %s: %w", creds.ID, err)
	}
	return nil
}

// evictUserAccessTokens drops in-memory access tokens issued to the user.
func (m *Manager) evictUserAccessTokens(userID string) {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	for token, at := range m.accessTokens {
		if at.RefreshToken.User.ID == userID {
			delete(m.accessTokens, token)
		}
	}
}

// CreateRefreshToken issues a durable refresh token for the user.
//
// Inactive users cannot hold refresh tokens. System users take no client
// id; regular users require one.
func (m *Manager) CreateRefreshToken(ctx context.Context, u *user.User, clientID string) (*user.RefreshToken, error) {
	if u == nil {
		return nil, fmt.Errorf("user is required")
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}
	if u.SystemGenerated && clientID != "" {
		return nil, ErrSystemUserClientID
	}
	if !u.SystemGenerated && clientID == "" {
		return nil, ErrClientIDRequired
	}
	return m.store.CreateRefreshToken(ctx, u, clientID)
}

// RefreshTokenByToken resolves a refresh token by its secret value.
func (m *Manager) RefreshTokenByToken(ctx context.Context, token string) (*user.RefreshToken, error) {
	return m.store.RefreshTokenByToken(ctx, token)
}

// CreateAccessToken issues an in-memory access token against the given
// refresh token. Access tokens are indexed by token value and are never
// persisted.
func (m *Manager) CreateAccessToken(rt *user.RefreshToken) (*user.AccessToken, error) {
	at, err := user.NewAccessToken(rt, m.clock, m.idGenerator, m.secretSource)
	if err != nil {
		return nil, err
	}
	m.tokenMu.Lock()
	m.accessTokens[at.Token] = at
	m.tokenMu.Unlock()
	return at, nil
}

// AccessToken resolves an access token by its secret value. An expired
// token is evicted from the index on lookup, so a later lookup for the same
// value misses outright.
func (m *Manager) AccessToken(token string) (*user.AccessToken, error) {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	at, ok := m.accessTokens[token]
	if !ok {
		return nil, ErrAccessTokenNotFound
	}
	if at.ExpiredAt(m.clock()) {
		delete(m.accessTokens, token)
		return nil, ErrAccessTokenNotFound
	}
	return at, nil
}
