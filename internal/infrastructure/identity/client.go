// Package identity is the HTTP adapter for the identity emulator. It keeps
// the signed-in principal, refreshes ID tokens before they expire and
// persists the refresh credential so separate processes share one sign-in.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/infrastructure/backend"
)

// CredentialKey is where the refresh credential is persisted.
const CredentialKey = "identity:credential"

// refreshSkew renews tokens this long before they expire.
const refreshSkew = time.Minute

// Emulator routes relative to the identity base URL.
const (
	pathSignIn        = "/accounts/sign-in"
	pathSignInIdp     = "/accounts/sign-in-idp"
	pathPasswordReset = "/accounts/password-reset"
	pathSignInMethods = "/accounts/sign-in-methods"
	pathSignOut       = "/accounts/sign-out"
	pathToken         = "/token"
)

// Client implements ports.IdentityProvider.
type Client struct {
	http  *backend.Client
	store ports.KVStore
	now   func() time.Time
	log   zerolog.Logger

	mu        sync.Mutex
	grant     *ports.TokenGrant
	listeners map[int]ports.AuthStateListener
	nextID    int
}

var _ ports.IdentityProvider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a Client for the emulator at baseURL persisting into store.
func New(baseURL string, store ports.KVStore, opts ...Option) *Client {
	c := &Client{
		store:     store,
		now:       time.Now,
		log:       zerolog.Nop(),
		listeners: make(map[int]ports.AuthStateListener),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = backend.New(baseURL, nil, backend.WithLogger(c.log))
	return c
}

// Restore loads a persisted credential without contacting the emulator. A
// missing or unreadable credential leaves the client signed out.
func (c *Client) Restore(ctx context.Context) error {
	raw, err := c.store.Get(ctx, CredentialKey)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("identity: restore: %w", err)
	}
	var g ports.TokenGrant
	if err := json.Unmarshal([]byte(raw), &g); err != nil || g.RefreshToken == "" || g.Principal.UID == "" {
		c.log.Warn().Err(err).Msg("discarding unreadable identity credential")
		_ = c.store.Delete(ctx, CredentialKey)
		return nil
	}
	c.setGrant(ctx, &g, false)
	return nil
}

// Current returns the signed-in principal or nil.
func (c *Client) Current() *ports.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grant == nil {
		return nil
	}
	p := c.grant.Principal
	return &p
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*ports.Principal, error) {
	body := map[string]string{"email": email, "password": password}
	g, err := c.exchange(ctx, pathSignIn, body)
	if err != nil {
		if errors.Is(err, domain.ErrNetwork) {
			return nil, err
		}
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	return c.adopt(ctx, g), nil
}

func (c *Client) SignInWithIdp(ctx context.Context, providerID, email, displayName string) (*ports.Principal, error) {
	body := map[string]string{"providerId": providerID, "email": email, "displayName": displayName}
	g, err := c.exchange(ctx, pathSignInIdp, body)
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return nil, &domain.CredentialConflictError{Email: email}
		}
		return nil, err
	}
	return c.adopt(ctx, g), nil
}

func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.http.JSON(ctx, http.MethodPost, pathPasswordReset, map[string]string{"email": email}, false).Err()
}

func (c *Client) SignInMethods(ctx context.Context, email string) ([]string, error) {
	var out struct {
		Methods []string `json:"methods"`
	}
	res := c.http.JSON(ctx, http.MethodPost, pathSignInMethods, map[string]string{"email": email}, false)
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return out.Methods, nil
}

// SignOut revokes the refresh credential and clears local state. Local state
// is cleared even when the emulator cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	g := c.grant
	c.mu.Unlock()

	var err error
	if g != nil {
		err = c.http.JSON(ctx, http.MethodPost, pathSignOut, map[string]string{"refreshToken": g.RefreshToken}, false).Err()
		if err != nil {
			c.log.Warn().Err(err).Msg("revoke refresh credential")
		}
	}
	c.clear(ctx)
	return err
}

// IDToken returns a token valid for at least refreshSkew, refreshing it
// when needed. A rejected refresh signs the user out.
func (c *Client) IDToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	g := c.grant
	c.mu.Unlock()
	if g == nil {
		return "", domain.ErrUnauthorized
	}
	if g.IDToken != "" && c.now().Add(refreshSkew).Before(g.ExpiresAt) {
		return g.IDToken, nil
	}

	fresh, err := c.exchange(ctx, pathToken, map[string]string{"refreshToken": g.RefreshToken})
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			c.log.Info().Str("uid", g.Principal.UID).Msg("refresh credential rejected, signing out")
			c.clear(ctx)
			return "", domain.ErrUnauthorized
		}
		return "", err
	}
	c.setGrant(ctx, fresh, fresh.Principal.UID != g.Principal.UID)
	return fresh.IDToken, nil
}

// OnAuthStateChanged calls fn with the current principal before returning
// and again after every sign-in or sign-out.
func (c *Client) OnAuthStateChanged(fn ports.AuthStateListener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	var p *ports.Principal
	if c.grant != nil {
		cp := c.grant.Principal
		p = &cp
	}
	c.mu.Unlock()

	fn(p)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) exchange(ctx context.Context, path string, body any) (*ports.TokenGrant, error) {
	var g ports.TokenGrant
	if err := c.http.JSON(ctx, http.MethodPost, path, body, false).Decode(&g); err != nil {
		return nil, err
	}
	if g.IDToken == "" || g.Principal.UID == "" {
		return nil, &domain.APIError{Status: http.StatusBadGateway, Message: "identity service returned an incomplete token"}
	}
	return &g, nil
}

func (c *Client) adopt(ctx context.Context, g *ports.TokenGrant) *ports.Principal {
	c.setGrant(ctx, g, true)
	p := g.Principal
	return &p
}

func (c *Client) setGrant(ctx context.Context, g *ports.TokenGrant, notify bool) {
	c.mu.Lock()
	c.grant = g
	c.mu.Unlock()

	if raw, err := json.Marshal(g); err == nil {
		if err := c.store.Set(ctx, CredentialKey, string(raw)); err != nil {
			c.log.Warn().Err(err).Msg("persist identity credential")
		}
	}
	if notify {
		p := g.Principal
		c.notify(&p)
	}
}

func (c *Client) clear(ctx context.Context) {
	c.mu.Lock()
	had := c.grant != nil
	c.grant = nil
	c.mu.Unlock()

	if err := c.store.Delete(ctx, CredentialKey); err != nil {
		c.log.Warn().Err(err).Msg("remove identity credential")
	}
	if had {
		c.notify(nil)
	}
}

func (c *Client) notify(p *ports.Principal) {
	c.mu.Lock()
	fns := make([]ports.AuthStateListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		if p == nil {
			fn(nil)
			continue
		}
		cp := *p
		fn(&cp)
	}
}
