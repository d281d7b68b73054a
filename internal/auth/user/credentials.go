package user

import (
	"fmt"

	"github.com/emberhome/ember/internal/platform/id"
)

// Credentials binds a user to one provider's representation of identity.
//
// A provider constructs credentials without side effects; they become
// permanent only once linked to a user, at which point IsNew flips to
// false. The flag never transitions back.
type Credentials struct {
	ID string

	// AuthProviderType and AuthProviderID identify the owning provider.
	// AuthProviderID is empty unless two providers of the same type are
	// configured.
	AuthProviderType string
	AuthProviderID   string

	// Data is an opaque blob the provider uses to represent the identity.
	Data map[string]any

	IsNew bool
}

// NewCredentials creates unlinked credentials owned by the given provider
// identity.
func NewCredentials(providerType, providerID string, data map[string]any, idGenerator func() (string, error)) (*Credentials, error) {
	if providerType == "" {
		return nil, fmt.Errorf("provider type is required")
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	credID, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate credentials id: %w", err)
	}

	return &Credentials{
		ID:               credID,
		AuthProviderType: providerType,
		AuthProviderID:   providerID,
		Data:             data,
		IsNew:            true,
	}, nil
}
