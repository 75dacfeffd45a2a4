package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pingidentity/ping-go/orchestrate"
	"github.com/pingidentity/ping-go/storage"
)

// DefaultRefreshThreshold refreshes access tokens that expire within a minute
const DefaultRefreshThreshold = time.Minute

// User is the authenticated session returned by a successful flow. It holds
// the authorization code and exchanges it for tokens on first use.
type User struct {
	code     string
	verifier string
	cfg      *Config
	client   orchestrate.HTTPClient
	store    storage.Storage[Token]
	signOff  func(ctx context.Context) error
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

var _ orchestrate.Session = (*User)(nil)

// UserOption configures a User
type UserOption func(*User)

// WithSignOff sets the function Logout calls to end the server session
func WithSignOff(fn func(ctx context.Context) error) UserOption {
	return func(u *User) {
		u.signOff = fn
	}
}

// WithUserLogger sets the logger
func WithUserLogger(logger *slog.Logger) UserOption {
	return func(u *User) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUser creates a user for an authorization code. store caches the
// tokens; a memory store is used when it is nil.
func NewUser(code, verifier string, cfg *Config, client orchestrate.HTTPClient, store storage.Storage[Token], opts ...UserOption) *User {
	if store == nil {
		store = storage.NewMemory[Token]()
	}
	u := &User{
		code:     code,
		verifier: verifier,
		cfg:      cfg,
		client:   client,
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Value implements orchestrate.Session and returns the authorization code
func (u *User) Value() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.code
}

// Token returns a valid token. The stored token is used while it is fresh,
// refreshed when it is about to expire, and the authorization code is
// exchanged when nothing is stored. A code is exchanged at most once.
func (u *User) Token(ctx context.Context) (*Token, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	stored, ok, err := u.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if ok {
		if !stored.Expired(u.now(), DefaultRefreshThreshold) {
			return &stored, nil
		}
		token, err := Refresh(ctx, u.client, u.cfg, &stored)
		if err == nil {
			u.logger.Debug("token refreshed", "expiresAt", token.ExpiresAt)
			return token, u.save(ctx, token)
		}
		if !errors.Is(err, ErrNoRefreshToken) {
			return nil, err
		}
		if !stored.Expired(u.now(), 0) {
			return &stored, nil
		}
	}

	if u.code == "" {
		return nil, ErrNoCode
	}

	token, err := Exchange(ctx, u.client, u.cfg, u.code, u.verifier)
	if err != nil {
		return nil, err
	}
	u.code = ""
	u.logger.Debug("authorization code exchanged", "expiresAt", token.ExpiresAt)
	return token, u.save(ctx, token)
}

func (u *User) save(ctx context.Context, token *Token) error {
	if err := u.store.Save(ctx, *token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Userinfo calls the userinfo endpoint with the access token
func (u *User) Userinfo(ctx context.Context) (map[string]any, error) {
	if u.cfg.Endpoints.Userinfo == "" {
		return nil, fmt.Errorf("%w: userinfo", ErrNoEndpoints)
	}
	token, err := u.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := u.client.Send(ctx, orchestrate.NewRequest().
		SetURL(u.cfg.Endpoints.Userinfo).
		Header("Authorization", "Bearer "+token.AccessToken).
		Header("Accept", "application/json"))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &orchestrate.APIError{Status: resp.Status, Body: resp.Body}
	}
	return resp.JSON()
}

// Logout ends the server session and forgets the tokens. The local state is
// cleared even when the server call fails; that error is returned.
func (u *User) Logout(ctx context.Context) error {
	var err error
	if u.signOff != nil {
		err = u.signOff(ctx)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.code = ""
	if derr := u.store.Delete(ctx); derr != nil {
		u.logger.Warn("failed to delete token", "error", derr)
	}
	return err
}
