package user

import (
	"fmt"
	"time"

	"github.com/emberhome/ember/internal/platform/id"
	"github.com/emberhome/ember/internal/platform/secret"
)

// DefaultAccessTokenExpiration bounds how long access tokens issued against
// a refresh token stay valid.
const DefaultAccessTokenExpiration = 30 * time.Minute

const (
	refreshTokenEntropy = 64
	accessTokenEntropy  = 32
)

// RefreshToken is a durable secret that authorizes issuance of short-lived
// access tokens for its user.
//
// A refresh token is never mutated after creation. AccessTokens is only
// populated when a persisted document carries access-token records; tokens
// issued at runtime live solely in the manager's in-memory index so that
// saves never persist them.
type RefreshToken struct {
	ID string

	// User is a back-reference to the owner, not ownership.
	User *User

	// ClientID scopes the token to a client. Empty for system users.
	ClientID string

	CreatedAt             time.Time
	AccessTokenExpiration time.Duration

	// Token is the secret value, unique across the store.
	Token string

	AccessTokens []*AccessToken
}

// NewRefreshToken creates a refresh token for the given user.
func NewRefreshToken(owner *User, clientID string, expiration time.Duration, now func() time.Time, idGenerator func() (string, error), source secret.Source) (*RefreshToken, error) {
	if owner == nil {
		return nil, fmt.Errorf("user is required")
	}
	if expiration <= 0 {
		expiration = DefaultAccessTokenExpiration
	}
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if source == nil {
		source = secret.New
	}

	tokenID, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token id: %w", err)
	}
	value, err := source(refreshTokenEntropy)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token secret: %w", err)
	}

	return &RefreshToken{
		ID:                    tokenID,
		User:                  owner,
		ClientID:              clientID,
		CreatedAt:             now().UTC(),
		AccessTokenExpiration: expiration,
		Token:                 value,
	}, nil
}

// AccessToken is an ephemeral session secret issued against a refresh
// token. Access tokens live in process memory only and are never persisted
// across restarts.
type AccessToken struct {
	ID string

	// RefreshToken is a back-reference to the issuing token.
	RefreshToken *RefreshToken

	CreatedAt time.Time

	// Token is the secret value, unique across the process.
	Token string
}

// NewAccessToken issues an access token against the given refresh token.
// Issuance is pure: it touches no shared state.
func NewAccessToken(rt *RefreshToken, now func() time.Time, idGenerator func() (string, error), source secret.Source) (*AccessToken, error) {
	if rt == nil {
		return nil, fmt.Errorf("refresh token is required")
	}
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if source == nil {
		source = secret.New
	}

	tokenID, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate access token id: %w", err)
	}
	value, err := source(accessTokenEntropy)
	if err != nil {
		return nil, fmt.Errorf("generate access token secret: %w", err)
	}

	return &AccessToken{
		ID:           tokenID,
		RefreshToken: rt,
		CreatedAt:    now().UTC(),
		Token:        value,
	}, nil
}

// ExpiredAt reports whether the token has expired at the given instant.
// Expiry derives from the issuing refresh token's expiration window.
func (t *AccessToken) ExpiredAt(now time.Time) bool {
	return now.After(t.CreatedAt.Add(t.RefreshToken.AccessTokenExpiration))
}
