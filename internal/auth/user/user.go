// Package user defines the identity entity graph: users, their provider
// credentials, and the refresh and access tokens issued against them.
package user

import (
	"fmt"
	"strings"

	"github.com/emberhome/ember/internal/platform/id"
)

// User is an identity known to the hub.
//
// Mutation of a User must happen inside the auth store, which owns the
// authoritative graph.
type User struct {
	ID              string
	Name            string
	IsOwner         bool
	IsActive        bool
	SystemGenerated bool

	// Credentials issued to this user across providers.
	Credentials []*Credentials

	// RefreshTokens keyed by their secret token value.
	RefreshTokens map[string]*RefreshToken
}

// NewUserInput describes the metadata needed to create a user.
type NewUserInput struct {
	Name            string
	IsOwner         bool
	IsActive        bool
	SystemGenerated bool
}

// NewUser creates a user record from validated input.
func NewUser(input NewUserInput, idGenerator func() (string, error)) (*User, error) {
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	userID, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	return &User{
		ID:              userID,
		Name:            strings.TrimSpace(input.Name),
		IsOwner:         input.IsOwner,
		IsActive:        input.IsActive,
		SystemGenerated: input.SystemGenerated,
		RefreshTokens:   make(map[string]*RefreshToken),
	}, nil
}
