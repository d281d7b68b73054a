package store

import (
	"fmt"
	"time"

	"github.com/emberhome/ember/internal/auth/storage"
	"github.com/emberhome/ember/internal/auth/user"
)

// serializeLocked flattens the entity graph into a storage document. Child
// records carry their parent's id for re-linking. Credential data blobs are
// treated as immutable once constructed and are shared, not copied.
//
// Callers must hold s.mu.
func (s *Store) serializeLocked() *storage.Document {
	doc := &storage.Document{
		Version:       storage.DocumentVersion,
		Users:         make([]storage.UserRecord, 0, len(s.order)),
		Credentials:   []storage.CredentialsRecord{},
		RefreshTokens: []storage.RefreshTokenRecord{},
		AccessTokens:  []storage.AccessTokenRecord{},
	}

	for _, userID := range s.order {
		u := s.users[userID]
		doc.Users = append(doc.Users, storage.UserRecord{
			ID:              u.ID,
			IsOwner:         u.IsOwner,
			IsActive:        u.IsActive,
			Name:            u.Name,
			SystemGenerated: u.SystemGenerated,
		})

		for _, creds := range u.Credentials {
			doc.Credentials = append(doc.Credentials, storage.CredentialsRecord{
				ID:               creds.ID,
				UserID:           u.ID,
				AuthProviderType: creds.AuthProviderType,
				AuthProviderID:   creds.AuthProviderID,
				Data:             creds.Data,
			})
		}

		for _, rt := range u.RefreshTokens {
			doc.RefreshTokens = append(doc.RefreshTokens, storage.RefreshTokenRecord{
				ID:                    rt.ID,
				UserID:                u.ID,
				ClientID:              rt.ClientID,
				CreatedAt:             rt.CreatedAt,
				AccessTokenExpiration: rt.AccessTokenExpiration.Seconds(),
				Token:                 rt.Token,
			})

			for _, at := range rt.AccessTokens {
				doc.AccessTokens = append(doc.AccessTokens, storage.AccessTokenRecord{
					ID:             at.ID,
					RefreshTokenID: rt.ID,
					CreatedAt:      at.CreatedAt,
					Token:          at.Token,
				})
			}
		}
	}
	return doc
}

// rebuildLocked reconstructs the entity graph from a document, strictly in
// dependency order: users, then credentials, then refresh tokens, then
// access tokens.
//
// Callers must hold s.mu.
func (s *Store) rebuildLocked(doc *storage.Document) error {
	users := make(map[string]*user.User, len(doc.Users))
	order := make([]string, 0, len(doc.Users))
	for _, record := range doc.Users {
		users[record.ID] = &user.User{
			ID:              record.ID,
			Name:            record.Name,
			IsOwner:         record.IsOwner,
			IsActive:        record.IsActive,
			SystemGenerated: record.SystemGenerated,
			RefreshTokens:   make(map[string]*user.RefreshToken),
		}
		order = append(order, record.ID)
	}

	for _, record := range doc.Credentials {
		owner, ok := users[record.UserID]
		if !ok {
			return fmt.Errorf("credentials %s reference unknown user %s", record.ID, record.UserID)
		}
		owner.Credentials = append(owner.Credentials, &user.Credentials{
			ID:               record.ID,
			AuthProviderType: record.AuthProviderType,
			AuthProviderID:   record.AuthProviderID,
			Data:             record.Data,
			IsNew:            false,
		})
	}

	refreshByID := make(map[string]*user.RefreshToken, len(doc.RefreshTokens))
	for _, record := range doc.RefreshTokens {
		owner, ok := users[record.UserID]
		if !ok {
			return fmt.Errorf("refresh token %s references unknown user %s", record.ID, record.UserID)
		}
		rt := &user.RefreshToken{
			ID:                    record.ID,
			User:                  owner,
			ClientID:              record.ClientID,
			CreatedAt:             record.CreatedAt.UTC(),
			AccessTokenExpiration: time.Duration(record.AccessTokenExpiration * float64(time.Second)),
			Token:                 record.Token,
		}
		refreshByID[rt.ID] = rt
		owner.RefreshTokens[rt.Token] = rt
	}

	for _, record := range doc.AccessTokens {
		rt, ok := refreshByID[record.RefreshTokenID]
		if !ok {
			return fmt.Errorf("access token %s references unknown refresh token %s", record.ID, record.RefreshTokenID)
		}
		rt.AccessTokens = append(rt.AccessTokens, &user.AccessToken{
			ID:           record.ID,
			RefreshToken: rt,
			CreatedAt:    record.CreatedAt.UTC(),
			Token:        record.Token,
		})
	}

	s.users = users
	s.order = order
	return nil
}
