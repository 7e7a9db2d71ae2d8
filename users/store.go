package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/auth"
	"github.com/medipass/hospital-worker/hospitals"
	"github.com/medipass/hospital-worker/rfid"
	"github.com/medipass/hospital-worker/store"
	"github.com/medipass/hospital-worker/types"
)

var Module = fx.Provide(New)

type Params struct {
	fx.In

	Store  store.Store
	Auth   auth.Client
	Logger *zap.SugaredLogger
}

// Store holds the staff roster for the admin surfaces. Super admin
// identities are managed elsewhere and never appear here.
type Store struct {
	store  store.Store
	auth   auth.Client
	logger *zap.SugaredLogger

	mu        sync.Mutex
	users     []User
	loading   bool
	err       error
	disposers []store.Unsubscribe
}

func New(p Params) *Store {
	return &Store{
		store:  p.Store,
		auth:   p.Auth,
		logger: p.Logger,
	}
}

// Fetch loads the roster once. Calling it again with a populated cache is
// a no-op, so views can request it on every mount.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	if len(s.users) > 0 {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	snapshot, err := s.store.Query(ctx, Collection,
		store.Where("role", store.OpNotEqual, string(RoleSuperAdmin)),
	)
	if err != nil {
		err = fmt.Errorf("unable to fetch users: %w", err)
		s.setError(err)
		return err
	}
	users, err := store.DecodeAll[User](snapshot)
	if err != nil {
		err = fmt.Errorf("unable to decode users: %w", err)
		s.setError(err)
		return err
	}
	sortNewestFirst(users)

	s.mu.Lock()
	s.users = users
	s.loading = false
	s.mu.Unlock()
	return nil
}

// Add creates a staff account. The provider account is opened through a
// disposable auth context so the administrator's own session stays
// active throughout.
func (s *Store) Add(ctx context.Context, params NewUserParams) (User, error) {
	if err := params.Validate(); err != nil {
		return User{}, err
	}
	if err := s.checkHospital(ctx, params.HospitalID); err != nil {
		return User{}, err
	}
	if err := s.checkEmailAvailable(ctx, params.Email); err != nil {
		return User{}, err
	}

	disposable := s.auth.DisposableContext()
	session, err := disposable.SignUp(ctx, params.Email, params.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailInUse) {
			return User{}, ErrEmailExists
		}
		return User{}, fmt.Errorf("unable to create account for %s: %w", params.Email, err)
	}
	defer func() {
		if err := disposable.SignOut(ctx); err != nil {
			s.logger.Warnw("unable to sign out disposable context", "email", params.Email, zap.Error(err))
		}
	}()

	now := time.Now().UTC()
	user := User{
		ID:           session.UID,
		Email:        params.Email,
		Role:         params.Role,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		HospitalID:   params.HospitalID,
		HospitalName: params.HospitalName,
		Status:       StatusActive,
		IsFirstLogin: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.SetDocument(ctx, Collection, user.ID, user); err != nil {
		return User{}, fmt.Errorf("unable to store user %s: %w", user.ID, err)
	}

	s.mu.Lock()
	s.users = append([]User{user}, s.users...)
	s.mu.Unlock()

	s.logger.Infow("created user", "userId", user.ID, "role", user.Role, "hospitalId", user.HospitalID)
	return user, nil
}

// Update writes the partial update to the backend, then patches the
// cached record so views never observe the write without its effect.
func (s *Store) Update(ctx context.Context, id string, update Update) error {
	now := time.Now().UTC()
	if err := s.store.UpdateDocument(ctx, Collection, id, update.Fields(now)); err != nil {
		return fmt.Errorf("unable to update user %s: %w", id, err)
	}

	s.mu.Lock()
	for i := range s.users {
		if s.users[i].ID == id {
			update.Apply(&s.users[i])
			s.users[i].UpdatedAt = now
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// Delete removes the user record and every RFID card registered to it in
// a single batch, then tears down the provider account. A failed account
// deletion leaves an orphaned credential, which is acceptable; a failed
// batch aborts the whole operation.
func (s *Store) Delete(ctx context.Context, id string) error {
	op := types.TwoPhase{
		Name: "delete-user",
		Mandatory: func(ctx context.Context) error {
			return s.deleteRecords(ctx, id)
		},
		BestEffort: func(ctx context.Context) error {
			return s.auth.DeleteAccount(ctx, id)
		},
	}
	if err := op.Run(ctx, s.logger); err != nil {
		return err
	}

	s.removeFromCache(id)
	s.logger.Infow("deleted user", "userId", id)
	return nil
}

// CascadeDelete removes the user record and its RFID cards after the
// provider account is already gone. Used by the account-events consumer.
func (s *Store) CascadeDelete(ctx context.Context, id string) error {
	if err := s.deleteRecords(ctx, id); err != nil {
		return err
	}
	s.removeFromCache(id)
	return nil
}

func (s *Store) deleteRecords(ctx context.Context, id string) error {
	cards, err := s.store.Query(ctx, rfid.Collection, store.Where("userId", store.OpEqual, id))
	if err != nil {
		return fmt.Errorf("unable to look up rfid cards for user %s: %w", id, err)
	}

	batch := s.store.Batch()
	batch.Delete(Collection, id)
	for _, card := range cards {
		batch.Delete(rfid.Collection, card.ID)
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("unable to delete user %s: %w", id, err)
	}
	return nil
}

// ToggleStatus flips the user between active and inactive.
func (s *Store) ToggleStatus(ctx context.Context, id string) error {
	user, ok := s.Get(id)
	if !ok {
		return store.ErrNotFound
	}
	status := StatusInactive
	if !user.IsActive() {
		status = StatusActive
	}
	return s.Update(ctx, id, Update{Status: &status})
}

// SubscribeToHospital keeps fn fed with the staff roster of one hospital.
// The subscription is owned by the store and torn down by Cleanup.
func (s *Store) SubscribeToHospital(ctx context.Context, hospitalID string, fn func(users []User, err error)) error {
	detach, err := s.store.Subscribe(ctx, Collection, []store.Predicate{
		store.Where("hospitalId", store.OpEqual, hospitalID),
	}, func(snapshot store.Snapshot) {
		users, err := store.DecodeAll[User](snapshot)
		if err != nil {
			fn(nil, err)
			return
		}
		sortNewestFirst(users)
		fn(users, nil)
	})
	if err != nil {
		return fmt.Errorf("unable to subscribe to hospital %s users: %w", hospitalID, err)
	}

	s.mu.Lock()
	s.disposers = append(s.disposers, detach)
	s.mu.Unlock()
	return nil
}

// Cleanup detaches every subscription and drops the cache.
func (s *Store) Cleanup() {
	s.mu.Lock()
	disposers := s.disposers
	s.disposers = nil
	s.users = nil
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	for _, detach := range disposers {
		detach()
	}
}

func (s *Store) Get(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, true
		}
	}
	return User{}, false
}

func (s *Store) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]User, len(s.users))
	copy(users, s.users)
	return users
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) checkHospital(ctx context.Context, hospitalID string) error {
	document, err := s.store.GetDocument(ctx, hospitals.Collection, hospitalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidHospital
		}
		return fmt.Errorf("unable to look up hospital %s: %w", hospitalID, err)
	}
	hospital := hospitals.Hospital{}
	if err := document.DataTo(&hospital); err != nil {
		return fmt.Errorf("unable to decode hospital %s: %w", hospitalID, err)
	}
	if !hospital.IsActive {
		return ErrInvalidHospital
	}
	return nil
}

func (s *Store) checkEmailAvailable(ctx context.Context, email string) error {
	snapshot, err := s.store.Query(ctx, Collection, store.Where("email", store.OpEqual, email))
	if err != nil {
		return fmt.Errorf("unable to look up email %s: %w", email, err)
	}
	if len(snapshot) > 0 {
		return ErrEmailExists
	}
	return nil
}

func (s *Store) removeFromCache(id string) {
	s.mu.Lock()
	filtered := s.users[:0]
	for _, user := range s.users {
		if user.ID != id {
			filtered = append(filtered, user)
		}
	}
	s.users = filtered
	s.mu.Unlock()
}

func (s *Store) setError(err error) {
	s.mu.Lock()
	s.err = err
	s.loading = false
	s.mu.Unlock()
}

func sortNewestFirst(users []User) {
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
}
