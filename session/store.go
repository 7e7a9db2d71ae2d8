// Package session is the single source of truth for who is signed in and
// whether the authentication state is still resolving.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/auth"
	"github.com/medipass/hospital-worker/store"
	"github.com/medipass/hospital-worker/users"
)

const resolveTimeout = 30 * time.Second

var Module = fx.Provide(New)

type Params struct {
	fx.In

	Store  store.Store
	Auth   auth.Client
	Logger *zap.SugaredLogger
}

type Store struct {
	store  store.Store
	auth   auth.Client
	logger *zap.SugaredLogger

	mu      sync.Mutex
	user    *users.User
	loading bool

	initOnce  sync.Once
	closeOnce sync.Once
	detach    auth.Unsubscribe
}

func New(p Params) *Store {
	return &Store{
		store:   p.Store,
		auth:    p.Auth,
		logger:  p.Logger,
		loading: true,
	}
}

// Initialize registers the session-change listener. Safe to call more
// than once; only the first call attaches.
func (s *Store) Initialize() {
	s.initOnce.Do(func() {
		s.detach = s.auth.OnSessionChange(s.handleSessionChange)
	})
}

// Close detaches the session listener exactly once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.detach != nil {
			s.detach()
		}
	})
}

func (s *Store) handleSessionChange(session *auth.Session) {
	s.SetLoading(true)

	if session == nil {
		s.SetUser(nil)
		s.SetLoading(false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	user, err := s.resolveIdentity(ctx, session)
	if err != nil {
		s.logger.Errorw("unable to resolve identity", "uid", session.UID, zap.Error(err))
		s.SetUser(nil)
	} else {
		s.SetUser(&user)
	}
	s.SetLoading(false)
}

// resolveIdentity loads the identity record for a session, provisioning
// a minimal patient-role record when none exists yet. New accounts are
// usable immediately; an admin assigns the real role later.
func (s *Store) resolveIdentity(ctx context.Context, session *auth.Session) (users.User, error) {
	doc, err := s.store.GetDocument(ctx, users.Collection, session.UID)
	if errors.Is(err, store.ErrNotFound) {
		return s.provisionIdentity(ctx, session)
	}
	if err != nil {
		return users.User{}, err
	}

	var user users.User
	if err := doc.DataTo(&user); err != nil {
		return users.User{}, err
	}
	return user, nil
}

func (s *Store) provisionIdentity(ctx context.Context, session *auth.Session) (users.User, error) {
	now := time.Now().UTC()
	user := users.User{
		ID:        session.UID,
		Email:     session.Email,
		Role:      users.RolePatient,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SetDocument(ctx, users.Collection, user.ID, user); err != nil {
		return users.User{}, fmt.Errorf("unable to provision identity: %w", err)
	}

	s.logger.Infow("provisioned identity with default role", "uid", user.ID)
	return user, nil
}

// SignIn authenticates and resolves the caller's identity. Accounts with
// a role outside the routing table are rejected.
func (s *Store) SignIn(ctx context.Context, email, password string) (*users.User, error) {
	session, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	user, err := s.resolveIdentity(ctx, session)
	if err != nil {
		return nil, err
	}
	if !IsRoutable(user.Role) {
		return nil, fmt.Errorf("unrecognized account type %q", user.Role)
	}
	return &user, nil
}

// SignOut terminates the session server-side first; local state is left
// untouched when the backend call fails.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.auth.SignOut(ctx); err != nil {
		return err
	}
	s.SetUser(nil)
	return nil
}

// UpdateProfile updates the signed-in user's name, then patches the
// local identity.
func (s *Store) UpdateProfile(ctx context.Context, firstName, lastName string) error {
	current := s.User()
	if current == nil {
		return auth.ErrNoSession
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{
		"firstName": firstName,
		"lastName":  lastName,
		"updatedAt": now,
	}
	if err := s.store.UpdateDocument(ctx, users.Collection, current.ID, fields); err != nil {
		return fmt.Errorf("unable to update profile: %w", err)
	}

	s.mu.Lock()
	if s.user != nil {
		s.user.FirstName = firstName
		s.user.LastName = lastName
		s.user.UpdatedAt = now
	}
	s.mu.Unlock()
	return nil
}

// UpdatePassword re-authenticates with the current password before
// changing it.
func (s *Store) UpdatePassword(ctx context.Context, currentPassword, newPassword string) error {
	session := s.auth.CurrentSession()
	if session == nil {
		return auth.ErrNoSession
	}

	if _, err := s.auth.SignIn(ctx, session.Email, currentPassword); err != nil {
		return fmt.Errorf("current password rejected: %w", err)
	}
	return s.auth.UpdatePassword(ctx, newPassword)
}

func (s *Store) SetUser(user *users.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *Store) User() *users.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}
