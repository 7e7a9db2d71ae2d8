// Package test provides an in-memory identity provider double shared by
// the store test suites.
package test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/medipass/hospital-worker/auth"
)

type Account struct {
	UID      string
	Email    string
	Password string
}

// Backend is the provider-side account registry shared by every client
// (and disposable context) created from it.
type Backend struct {
	mu       sync.Mutex
	accounts map[string]*Account
	nextUID  int

	SignUpDisabled bool
	SignOutErr     error
	DeleteErr      error
	DeletedUIDs    []string
}

func NewBackend() *Backend {
	return &Backend{accounts: make(map[string]*Account)}
}

// Seed registers an account and returns its uid.
func (b *Backend) Seed(email, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(email, password).UID
}

func (b *Backend) HasAccount(email string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.accounts[strings.ToLower(email)]
	return ok
}

func (b *Backend) addLocked(email, password string) *Account {
	b.nextUID++
	account := &Account{
		UID:      fmt.Sprintf("uid-%d", b.nextUID),
		Email:    strings.ToLower(email),
		Password: password,
	}
	b.accounts[account.Email] = account
	return account
}

func (b *Backend) NewClient() *Client {
	return &Client{
		backend:   b,
		listeners: make(map[uint64]func(*auth.Session)),
	}
}

// Client implements auth.Client against the in-memory backend.
type Client struct {
	backend *Backend

	mu        sync.Mutex
	session   *auth.Session
	listeners map[uint64]func(*auth.Session)
	nextID    uint64

	SignOutCalls int
	Children     []*Client
}

var _ auth.Client = &Client{}

func (c *Client) SignIn(_ context.Context, email, password string) (*auth.Session, error) {
	if !strings.Contains(email, "@") {
		return nil, auth.ErrMalformedEmail
	}

	c.backend.mu.Lock()
	account, ok := c.backend.accounts[strings.ToLower(email)]
	c.backend.mu.Unlock()

	if !ok {
		return nil, auth.ErrUserNotFound
	}
	if account.Password != password {
		return nil, auth.ErrInvalidCredentials
	}

	session := &auth.Session{UID: account.UID, Email: account.Email}
	c.setSession(session)
	return session, nil
}

func (c *Client) SignUp(_ context.Context, email, password string) (*auth.Session, error) {
	if !strings.Contains(email, "@") {
		return nil, auth.ErrMalformedEmail
	}

	c.backend.mu.Lock()
	if c.backend.SignUpDisabled {
		c.backend.mu.Unlock()
		return nil, auth.ErrOperationDisabled
	}
	if _, ok := c.backend.accounts[strings.ToLower(email)]; ok {
		c.backend.mu.Unlock()
		return nil, auth.ErrEmailInUse
	}
	if len(password) < 6 {
		c.backend.mu.Unlock()
		return nil, auth.ErrWeakPassword
	}
	account := c.backend.addLocked(email, password)
	c.backend.mu.Unlock()

	session := &auth.Session{UID: account.UID, Email: account.Email}
	c.setSession(session)
	return session, nil
}

func (c *Client) SignOut(_ context.Context) error {
	c.mu.Lock()
	c.SignOutCalls++
	c.mu.Unlock()

	if err := c.backend.SignOutErr; err != nil {
		return err
	}
	c.setSession(nil)
	return nil
}

func (c *Client) UpdatePassword(_ context.Context, newPassword string) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return auth.ErrNoSession
	}
	if len(newPassword) < 6 {
		return auth.ErrWeakPassword
	}

	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	account, ok := c.backend.accounts[session.Email]
	if !ok {
		return auth.ErrUserNotFound
	}
	account.Password = newPassword
	return nil
}

func (c *Client) DeleteAccount(_ context.Context, uid string) error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()

	if err := c.backend.DeleteErr; err != nil {
		return err
	}
	for email, account := range c.backend.accounts {
		if account.UID == uid {
			delete(c.backend.accounts, email)
			break
		}
	}
	c.backend.DeletedUIDs = append(c.backend.DeletedUIDs, uid)
	return nil
}

func (c *Client) CurrentSession() *auth.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) OnSessionChange(fn func(*auth.Session)) auth.Unsubscribe {
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

func (c *Client) DisposableContext() auth.Client {
	child := c.backend.NewClient()

	c.mu.Lock()
	c.Children = append(c.Children, child)
	c.mu.Unlock()

	return child
}

func (c *Client) setSession(session *auth.Session) {
	c.mu.Lock()
	c.session = session
	listeners := make([]func(*auth.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(session)
	}
}
