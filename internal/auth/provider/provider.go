// Package provider defines the pluggable authentication backend contract,
// the factory registry that builds providers from configuration, and the
// login flow that drives a single authentication attempt.
package provider

import (
	"context"

	"github.com/emberhome/ember/internal/auth/user"
	"github.com/emberhome/ember/internal/platform/id"
)

// DefaultName is used when a provider configuration carries no name.
const DefaultName = "Unnamed auth provider"

// Key identifies a configured provider instance. ID is empty unless two
// providers of the same type are configured.
type Key struct {
	Type string
	ID   string
}

// Config is an already-validated provider configuration entry. Schema
// validation of Options happens before the core sees it.
type Config struct {
	Type    string
	Name    string
	ID      string
	Options map[string]any
}

// Key returns the registry key for this configuration.
func (c Config) Key() Key {
	return Key{Type: c.Type, ID: c.ID}
}

// Store is the slice of the auth store providers need to enumerate
// credentials.
type Store interface {
	Users(ctx context.Context) ([]*user.User, error)
}

// Provider is a pluggable authentication backend.
//
// Initialize runs at most once per provider instance, lazily, before its
// first flow starts; the manager guards it against concurrent
// double-invocation. CredentialFlow returns a fresh Flow per login attempt.
// GetOrCreateCredentials must be safe to call whenever a flow reaches a
// completed result.
type Provider interface {
	Type() string
	ID() string
	Name() string

	// Credentials returns all credentials across the store issued by this
	// provider.
	Credentials(ctx context.Context) ([]*user.Credentials, error)

	// NewCredentials constructs new, unlinked credentials tagged IsNew.
	// Construction is pure: no side effects anywhere.
	NewCredentials(data map[string]any) (*user.Credentials, error)

	Initialize(ctx context.Context) error
	CredentialFlow(ctx context.Context) (Flow, error)
	GetOrCreateCredentials(ctx context.Context, payload map[string]any) (*user.Credentials, error)
}

// Metadata carries optional display information for a brand-new user.
type Metadata struct {
	Name string
}

// MetadataProvider is implemented by providers that contribute user
// metadata. It is consulted only when a new user is being created.
type MetadataProvider interface {
	UserMetadata(ctx context.Context, creds *user.Credentials) (Metadata, error)
}

// RemovalObserver is implemented by providers that must be told before
// credentials they own are deleted. A returned error aborts the removal
// path for that credential.
type RemovalObserver interface {
	WillRemoveCredentials(ctx context.Context, creds *user.Credentials) error
}

// Base carries the identity and store wiring shared by provider
// implementations. Embed it and override the flow methods.
type Base struct {
	store  Store
	config Config
}

// NewBase creates the shared provider base.
func NewBase(store Store, config Config) Base {
	return Base{store: store, config: config}
}

// Type returns the provider type name.
func (b *Base) Type() string {
	return b.config.Type
}

// ID returns the optional provider instance id.
func (b *Base) ID() string {
	return b.config.ID
}

// Name returns the configured display name.
func (b *Base) Name() string {
	if b.config.Name == "" {
		return DefaultName
	}
	return b.config.Name
}

// Options returns the opaque provider configuration.
func (b *Base) Options() map[string]any {
	return b.config.Options
}

// Credentials returns all credentials in the store issued by this provider.
func (b *Base) Credentials(ctx context.Context) ([]*user.Credentials, error) {
	users, err := b.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	var out []*user.Credentials
	for _, u := range users {
		for _, creds := range u.Credentials {
			if creds.AuthProviderType == b.config.Type && creds.AuthProviderID == b.config.ID {
				out = append(out, creds)
			}
		}
	}
	return out, nil
}

// NewCredentials constructs unlinked credentials owned by this provider.
func (b *Base) NewCredentials(data map[string]any) (*user.Credentials, error) {
	return user.NewCredentials(b.config.Type, b.config.ID, data, id.NewID)
}

// Initialize is a no-op by default.
func (b *Base) Initialize(ctx context.Context) error {
	return nil
}
