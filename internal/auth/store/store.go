// Package store holds the authoritative in-memory auth entity graph,
// loading it lazily from a storage backend and persisting mutations through
// a debounced background flush.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/emberhome/ember/internal/auth/storage"
	"github.com/emberhome/ember/internal/auth/user"
	apperrors "github.com/emberhome/ember/internal/platform/errors"
	"github.com/emberhome/ember/internal/platform/id"
	"github.com/emberhome/ember/internal/platform/secret"
)

// ErrUserNotFound indicates the requested user is not in the store.
var ErrUserNotFound = apperrors.New(apperrors.CodeNotFound, "user not found")

// ErrRefreshTokenNotFound indicates no refresh token matches the given
// secret value.
var ErrRefreshTokenNotFound = apperrors.New(apperrors.CodeNotFound, "refresh token not found")

// Config tunes store persistence behavior.
type Config struct {
	// SaveDelay is the coalescing window: mutations within the window
	// produce a single physical write.
	SaveDelay time.Duration `env:"EMBER_AUTH_SAVE_DELAY" envDefault:"1s"`

	// AccessTokenExpiration is the window new refresh tokens grant their
	// access tokens.
	AccessTokenExpiration time.Duration `env:"EMBER_AUTH_ACCESS_TOKEN_EXPIRATION" envDefault:"30m"`
}

// Store is the sole mutation authority for the auth entity graph.
//
// The graph loads lazily: the first read or write triggers a load from the
// backend, guarded so concurrent first uses observe exactly one load.
// Mutations re-serialize the entire graph and schedule a coalesced save;
// callers must not assume durability until the save window elapses or
// Flush returns.
type Store struct {
	backend         storage.Backend
	saveDelay       time.Duration
	tokenExpiration time.Duration
	logger          *log.Logger

	clock        func() time.Time
	idGenerator  func() (string, error)
	secretSource secret.Source

	mu    sync.Mutex
	users map[string]*user.User // nil until loaded
	order []string              // user ids in creation order

	loadGroup singleflight.Group

	pendingMu sync.Mutex
	pending   *storage.Document

	kick      chan struct{}
	flushReq  chan flushRequest
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type flushRequest struct {
	ctx context.Context
	ack chan error
}

// New creates a store over the given backend and starts its background
// flush task. Callers must Close the store for deterministic shutdown.
func New(backend storage.Backend, cfg Config) *Store {
	if cfg.SaveDelay <= 0 {
		cfg.SaveDelay = time.Second
	}
	if cfg.AccessTokenExpiration <= 0 {
		cfg.AccessTokenExpiration = user.DefaultAccessTokenExpiration
	}
	s := &Store{
		backend:         backend,
		saveDelay:       cfg.SaveDelay,
		tokenExpiration: cfg.AccessTokenExpiration,
		logger:          log.Default(),
		clock:           time.Now,
		idGenerator:     id.NewID,
		secretSource:    secret.New,
		kick:            make(chan struct{}, 1),
		flushReq:        make(chan flushRequest),
		closing:         make(chan struct{}),
		done:            make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Users returns all users in creation order.
func (s *Store) Users(ctx context.Context) ([]*user.User, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*user.User, 0, len(s.order))
	for _, userID := range s.order {
		users = append(users, s.users[userID])
	}
	return users, nil
}

// User returns the user with the given id.
func (s *Store) User(ctx context.Context, userID string) (*user.User, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// CreateUserInput describes a user to create.
type CreateUserInput struct {
	Name            string
	IsActive        bool
	SystemGenerated bool

	// OwnerIfFirst grants ownership and activates the user when the store
	// holds no users yet. The emptiness check and the insert are one
	// atomic step, so two racing creations cannot both become owner.
	OwnerIfFirst bool

	// Credentials to link immediately. May be nil.
	Credentials *user.Credentials
}

// CreateUser creates a user and schedules a save.
func (s *Store) CreateUser(ctx context.Context, input CreateUserInput) (*user.User, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	first := len(s.users) == 0
	u, err := user.NewUser(user.NewUserInput{
		Name:            input.Name,
		IsOwner:         input.OwnerIfFirst && first,
		IsActive:        input.IsActive || (input.OwnerIfFirst && first),
		SystemGenerated: input.SystemGenerated,
	}, s.idGenerator)
	if err != nil {
		return nil, err
	}

	s.users[u.ID] = u
	s.order = append(s.order, u.ID)

	if input.Credentials != nil {
		s.linkLocked(u, input.Credentials)
	}
	s.scheduleSave(s.serializeLocked())
	return u, nil
}

// LinkUser attaches credentials to an existing user and schedules a save.
// The credentials' IsNew flag flips to false, permanently.
func (s *Store) LinkUser(ctx context.Context, u *user.User, creds *user.Credentials) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkLocked(u, creds)
	s.scheduleSave(s.serializeLocked())
	return nil
}

func (s *Store) linkLocked(u *user.User, creds *user.Credentials) {
	u.Credentials = append(u.Credentials, creds)
	creds.IsNew = false
}

// RemoveUser removes a user and everything it owns, then schedules a save.
func (s *Store) RemoveUser(ctx context.Context, u *user.User) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, u.ID)
	for i, userID := range s.order {
		if userID == u.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.scheduleSave(s.serializeLocked())
	return nil
}

// RemoveCredentials detaches credentials from their owning user and
// schedules a save.
func (s *Store) RemoveCredentials(ctx context.Context, creds *user.Credentials) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, userID := range s.order {
		u := s.users[userID]
		for i, candidate := range u.Credentials {
			if candidate.ID == creds.ID {
				u.Credentials = append(u.Credentials[:i], u.Credentials[i+1:]...)
				s.scheduleSave(s.serializeLocked())
				return nil
			}
		}
	}
	s.scheduleSave(s.serializeLocked())
	return nil
}

// CreateRefreshToken issues a refresh token for the user under the
// configured expiration window and schedules a save. The user must be in
// the store; activity and client-id precondition checks live in the
// manager.
func (s *Store) CreateRefreshToken(ctx context.Context, u *user.User, clientID string) (*user.RefreshToken, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return nil, ErrUserNotFound
	}
	rt, err := user.NewRefreshToken(u, clientID, s.tokenExpiration, s.clock, s.idGenerator, s.secretSource)
	if err != nil {
		return nil, err
	}
	u.RefreshTokens[rt.Token] = rt
	s.scheduleSave(s.serializeLocked())
	return rt, nil
}

// RefreshTokenByToken resolves a refresh token by its secret value.
func (s *Store) RefreshTokenByToken(ctx context.Context, token string) (*user.RefreshToken, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, userID := range s.order {
		if rt, ok := s.users[userID].RefreshTokens[token]; ok {
			return rt, nil
		}
	}
	return nil, ErrRefreshTokenNotFound
}

// ensureLoaded populates the graph from the backend on first use. Racing
// loads collapse into one backend read, and only the first completed load
// populates the graph; later results are discarded, not merged.
func (s *Store) ensureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.users != nil
	s.mu.Unlock()
	if loaded {
		return nil
	}

	_, err, _ := s.loadGroup.Do("load", func() (any, error) {
		doc, err := s.backend.Load(ctx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load auth document: %w", err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.users != nil {
			return nil, nil
		}
		if err != nil {
			s.users = make(map[string]*user.User)
			return nil, nil
		}
		return nil, s.rebuildLocked(doc)
	})
	return err
}
