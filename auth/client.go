// Package auth is the client of the external identity provider. It owns
// credential sign-in, account creation and removal, and the session
// change stream the identity store listens on.
package auth

import (
	"context"
	"sync"

	"github.com/go-resty/resty/v2"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// Unsubscribe detaches a session-change listener. Safe to call more than
// once.
type Unsubscribe func()

type Client interface {
	// SignIn authenticates with email and password and makes the resulting
	// session the client's active one.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// SignUp creates a new account. The new session becomes this client's
	// active one, which is why admin-driven creation must go through a
	// disposable context.
	SignUp(ctx context.Context, email, password string) (*Session, error)

	// SignOut revokes the active session server-side. The local session is
	// cleared only after the revocation succeeds.
	SignOut(ctx context.Context) error

	// UpdatePassword changes the password of the active session's account.
	UpdatePassword(ctx context.Context, newPassword string) error

	// DeleteAccount removes an account through the provider's admin
	// surface. Rate limited.
	DeleteAccount(ctx context.Context, uid string) error

	// CurrentSession returns the active session, or nil.
	CurrentSession() *Session

	// OnSessionChange registers a listener for session transitions. It
	// fires immediately with the current state (nil when signed out, the
	// restored session otherwise) and again on every sign-in and sign-out.
	OnSessionChange(fn func(*Session)) Unsubscribe

	// DisposableContext returns a client sharing this client's transport
	// and configuration but owning an isolated session, so that creating
	// an account does not replace the caller's active session.
	DisposableContext() Client
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type tokenResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// RestClient talks to the identity provider's REST surface.
type RestClient struct {
	config      Config
	restyClient *resty.Client
	logger      *zap.SugaredLogger
	adminLimit  ratelimit.Limiter

	mu        sync.Mutex
	session   *Session
	listeners map[uint64]func(*Session)
	nextID    uint64
}

var _ Client = &RestClient{}

func NewClient(config Config, logger *zap.SugaredLogger) *RestClient {
	restyClient := resty.New().
		SetBaseURL(config.Host).
		SetTimeout(config.Timeout)

	return &RestClient{
		config:      config,
		restyClient: restyClient,
		logger:      logger,
		adminLimit:  ratelimit.New(int(config.AdminRequestsPerSecond)),
		listeners:   make(map[uint64]func(*Session)),
	}
}

func (c *RestClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.credentialRequest(ctx, "/v1/accounts:signInWithPassword", email, password)
	if err != nil {
		return nil, err
	}
	c.setSession(session)
	return session, nil
}

func (c *RestClient) SignUp(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.credentialRequest(ctx, "/v1/accounts:signUp", email, password)
	if err != nil {
		return nil, err
	}
	c.setSession(session)
	return session, nil
}

func (c *RestClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}

	providerErr := &providerError{}
	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.config.APIKey).
		SetBody(map[string]string{"refreshToken": session.RefreshToken}).
		SetError(providerErr).
		Post("/v1/sessions:revoke")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return errorFromCode(providerErr.Error.Message)
	}

	c.setSession(nil)
	return nil
}

func (c *RestClient) UpdatePassword(ctx context.Context, newPassword string) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return ErrNoSession
	}

	providerErr := &providerError{}
	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.config.APIKey).
		SetBody(map[string]string{"idToken": session.IDToken, "password": newPassword}).
		SetError(providerErr).
		Post("/v1/accounts:update")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return errorFromCode(providerErr.Error.Message)
	}
	return nil
}

func (c *RestClient) DeleteAccount(ctx context.Context, uid string) error {
	c.adminLimit.Take()

	providerErr := &providerError{}
	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetAuthToken(c.config.AdminToken).
		SetBody(map[string]string{"localId": uid}).
		SetError(providerErr).
		Post("/v1/accounts:delete")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return errorFromCode(providerErr.Error.Message)
	}
	return nil
}

func (c *RestClient) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *RestClient) OnSessionChange(fn func(*Session)) Unsubscribe {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	session := c.session
	c.mu.Unlock()

	fn(session)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *RestClient) DisposableContext() Client {
	return &RestClient{
		config:      c.config,
		restyClient: c.restyClient,
		logger:      c.logger,
		adminLimit:  c.adminLimit,
		listeners:   make(map[uint64]func(*Session)),
	}
}

func (c *RestClient) credentialRequest(ctx context.Context, endpoint, email, password string) (*Session, error) {
	tokens := &tokenResponse{}
	providerErr := &providerError{}
	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.config.APIKey).
		SetBody(map[string]interface{}{
			"email":             email,
			"password":          password,
			"returnSecureToken": true,
		}).
		SetResult(tokens).
		SetError(providerErr).
		Post(endpoint)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, errorFromCode(providerErr.Error.Message)
	}

	return newSession(tokens.Email, tokens.IDToken, tokens.RefreshToken)
}

func (c *RestClient) setSession(session *Session) {
	c.mu.Lock()
	c.session = session
	listeners := make([]func(*Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(session)
	}
}
