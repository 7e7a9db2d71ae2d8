package appconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/auth"
	"github.com/medipass/hospital-worker/store"
	"github.com/medipass/hospital-worker/users"
)

const (
	Collection = "config"
	DocumentID = "app_config"
)

var ErrSuperAdminExists = errors.New("a super admin account has already been created")

// Config is the singleton first-run gate. Its absence means the
// application has never been opened.
type Config struct {
	IsInitialized     bool      `bson:"isInitialized" json:"isInitialized"`
	SuperAdminCreated bool      `bson:"superAdminCreated" json:"superAdminCreated"`
	CreatedAt         time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NeedsSetup reports whether the super-admin setup flow should be shown
// instead of the login form.
func (c *Config) NeedsSetup() bool {
	return c == nil || !c.SuperAdminCreated
}

var Module = fx.Provide(New)

type Params struct {
	fx.In

	Store  store.Store
	Auth   auth.Client
	Logger *zap.SugaredLogger
}

type Service struct {
	store  store.Store
	auth   auth.Client
	logger *zap.SugaredLogger
}

func New(p Params) *Service {
	return &Service{
		store:  p.Store,
		auth:   p.Auth,
		logger: p.Logger,
	}
}

// Get returns the config document, or nil when it has never been
// written.
func (s *Service) Get(ctx context.Context) (*Config, error) {
	document, err := s.store.GetDocument(ctx, Collection, DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to load app config: %w", err)
	}
	config := Config{}
	if err := document.DataTo(&config); err != nil {
		return nil, fmt.Errorf("unable to decode app config: %w", err)
	}
	return &config, nil
}

// Bootstrap creates the zero-state document on first load. Returns the
// current config either way.
func (s *Service) Bootstrap(ctx context.Context) (*Config, error) {
	config, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if config != nil {
		return config, nil
	}

	now := time.Now().UTC()
	fresh := Config{CreatedAt: now, UpdatedAt: now}
	if err := s.store.SetDocument(ctx, Collection, DocumentID, fresh); err != nil {
		return nil, fmt.Errorf("unable to bootstrap app config: %w", err)
	}

	s.logger.Infow("bootstrapped app config")
	return &fresh, nil
}

// CreateSuperAdmin performs the first-run setup: provider account,
// identity document and the config flags, in that order. Refused once a
// super admin exists.
func (s *Service) CreateSuperAdmin(ctx context.Context, email, password, firstName, lastName string) (*users.User, error) {
	config, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if config != nil && config.SuperAdminCreated {
		return nil, ErrSuperAdminExists
	}

	session, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("unable to create super admin account: %w", err)
	}

	now := time.Now().UTC()
	user := users.User{
		ID:           session.UID,
		Email:        email,
		Role:         users.RoleSuperAdmin,
		FirstName:    firstName,
		LastName:     lastName,
		Status:       users.StatusActive,
		IsFirstLogin: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.SetDocument(ctx, users.Collection, user.ID, user); err != nil {
		return nil, fmt.Errorf("unable to store super admin identity: %w", err)
	}

	if err := s.MarkSuperAdminCreated(ctx); err != nil {
		return nil, err
	}

	s.logger.Infow("created super admin", "userId", user.ID)
	return &user, nil
}

// MarkSuperAdminCreated flips the first-run flags with a merge write so
// a concurrent bootstrap cannot erase them.
func (s *Service) MarkSuperAdminCreated(ctx context.Context) error {
	fields := map[string]interface{}{
		"isInitialized":     true,
		"superAdminCreated": true,
		"updatedAt":         time.Now().UTC(),
	}
	if err := s.store.SetDocument(ctx, Collection, DocumentID, fields, store.Merge()); err != nil {
		return fmt.Errorf("unable to update app config: %w", err)
	}
	return nil
}
