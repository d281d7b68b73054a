// Package storage defines the persisted shape of the auth entity graph and
// the backend contract that stores it.
package storage

import (
	"context"
	"time"

	apperrors "github.com/emberhome/ember/internal/platform/errors"
)

// ErrNotFound indicates no auth document has been persisted yet.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "auth document not found")

// DocumentVersion identifies the persisted document schema.
const DocumentVersion = 1

// Document is the full auth entity graph flattened into independent
// relational-style collections. Child records carry their parent's id so a
// loader can re-link the graph in dependency order: users, credentials,
// refresh tokens, access tokens.
type Document struct {
	Version       int                  `json:"version"`
	Users         []UserRecord         `json:"users"`
	Credentials   []CredentialsRecord  `json:"credentials"`
	RefreshTokens []RefreshTokenRecord `json:"refresh_tokens"`
	AccessTokens  []AccessTokenRecord  `json:"access_tokens"`
}

// UserRecord is the persisted form of a user.
type UserRecord struct {
	ID              string `json:"id"`
	IsOwner         bool   `json:"is_owner"`
	IsActive        bool   `json:"is_active"`
	Name            string `json:"name"`
	SystemGenerated bool   `json:"system_generated"`
}

// CredentialsRecord is the persisted form of provider credentials.
type CredentialsRecord struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	AuthProviderType string         `json:"auth_provider_type"`
	AuthProviderID   string         `json:"auth_provider_id"`
	Data             map[string]any `json:"data"`
}

// RefreshTokenRecord is the persisted form of a refresh token. The
// expiration window is stored in seconds.
type RefreshTokenRecord struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	ClientID              string    `json:"client_id"`
	CreatedAt             time.Time `json:"created_at"`
	AccessTokenExpiration float64   `json:"access_token_expiration"`
	Token                 string    `json:"token"`
}

// AccessTokenRecord is the persisted form of an access token. Access tokens
// are process-lifetime artifacts, so records are not expected in practice;
// the format supports them for completeness and testability.
type AccessTokenRecord struct {
	ID             string    `json:"id"`
	RefreshTokenID string    `json:"refresh_token_id"`
	CreatedAt      time.Time `json:"created_at"`
	Token          string    `json:"token"`
}

// Backend persists the auth document. Durability semantics are the
// backend's concern; the store treats Save as eventually written.
type Backend interface {
	// Load returns the persisted document, or ErrNotFound when nothing has
	// been saved yet.
	Load(ctx context.Context) (*Document, error)
	// Save replaces the persisted document with doc.
	Save(ctx context.Context, doc *Document) error
}
