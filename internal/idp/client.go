// ABOUTME: Federated identity client wrapping the OAuth2 authorization-code flow
// ABOUTME: Handles redirect login, callback exchange, silent refresh, and logout

package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/loreworks/lore-console/internal/config"
	"github.com/loreworks/lore-console/internal/storage"
	"github.com/loreworks/lore-console/internal/token"
)

// Client errors
var (
	ErrNotConfigured   = errors.New("sso not configured")
	ErrNoActiveAccount = errors.New("no active account")
	ErrStateMismatch   = errors.New("state mismatch")
)

// Account is the cached identity-provider account. It survives process
// restarts so a returning user with a live provider session can silently
// re-acquire tokens without going through the login screen.
type Account struct {
	Subject      string `json:"subject"`
	Username     string `json:"username,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	PendingState string `json:"pendingState,omitempty"`
}

// TokenSet is the result of a successful provider authentication.
type TokenSet struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
}

// Client drives the enterprise identity-provider flow. The console uses the
// full redirect flow (print the authorize URL, complete the callback in a
// later invocation), so all state that bridges the redirect lives in storage.
type Client struct {
	mu          sync.Mutex
	oauth       *oauth2.Config
	logoutURL   string
	enabled     bool
	store       storage.Store
	httpClient  *http.Client
	logger      *slog.Logger
	initialized bool
	account     *Account
}

// New creates an identity client from SSO configuration. The store holds the
// cached account across process restarts. Pass nil httpClient for the default.
func New(cfg config.SSOConfig, store storage.Store, httpClient *http.Client) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		logoutURL:  cfg.LogoutURL,
		enabled:    cfg.Enabled,
		store:      store,
		httpClient: httpClient,
		logger:     slog.Default().With("component", "idp"),
	}
}

// Initialize loads the cached account from storage. Idempotent; safe to call
// once per process lifetime before any other method.
func (c *Client) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if !c.enabled {
		c.initialized = true
		return nil
	}

	raw, err := c.store.Get(storage.KeySSOAccount)
	if err == nil {
		var account Account
		if jsonErr := json.Unmarshal([]byte(raw), &account); jsonErr == nil {
			c.account = &account
		} else {
			// Unreadable cache entries are dropped rather than propagated.
			c.logger.Warn("discarding unreadable account cache", "error", jsonErr)
			_ = c.store.Delete(storage.KeySSOAccount)
		}
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		return fmt.Errorf("loading account cache: %w", err)
	}

	c.initialized = true
	return nil
}

// LoginURL begins the redirect flow: it returns the provider authorize URL
// and records the state nonce so the callback invocation can verify it.
func (c *Client) LoginURL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return "", ErrNotConfigured
	}

	state := uuid.New().String()
	account := c.account
	if account == nil {
		account = &Account{}
	}
	account.PendingState = state
	if err := c.saveAccountLocked(account); err != nil {
		return "", err
	}

	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// HandleCallback completes the redirect flow: verifies the state nonce,
// exchanges the authorization code, and caches the resulting account.
func (c *Client) HandleCallback(ctx context.Context, code, state string) (*TokenSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return nil, ErrNotConfigured
	}

	if c.account == nil || c.account.PendingState == "" || c.account.PendingState != state {
		return nil, ErrStateMismatch
	}

	tok, err := c.oauth.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	set := tokenSetFrom(tok)
	account := &Account{RefreshToken: set.RefreshToken}
	if claims, err := token.Decode(set.IDToken); err == nil {
		account.Subject = claims.Subject
	}
	if err := c.saveAccountLocked(account); err != nil {
		return nil, err
	}

	c.logger.Info("federated login completed", "subject", account.Subject)
	return set, nil
}

// AcquireTokenSilent obtains a fresh token using the cached refresh token,
// without user interaction. The cached refresh token is rotated if the
// provider returns a new one; last write wins under concurrent refreshes.
func (c *Client) AcquireTokenSilent(ctx context.Context) (*TokenSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return nil, ErrNotConfigured
	}
	if c.account == nil || c.account.RefreshToken == "" {
		return nil, ErrNoActiveAccount
	}

	src := c.oauth.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{
		RefreshToken: c.account.RefreshToken,
	})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("silent token acquisition: %w", err)
	}

	set := tokenSetFrom(tok)
	if set.RefreshToken != "" && set.RefreshToken != c.account.RefreshToken {
		account := *c.account
		account.RefreshToken = set.RefreshToken
		if err := c.saveAccountLocked(&account); err != nil {
			return nil, err
		}
	}

	return set, nil
}

// ActiveAccount returns the cached account, or nil when no federated session
// is known to this client.
func (c *Client) ActiveAccount() *Account {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.account == nil || c.account.RefreshToken == "" {
		return nil
	}
	account := *c.account
	return &account
}

// Logout ends the provider session and drops the cached account. The remote
// call is best-effort: a provider failure never blocks local logout.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	account := c.account
	c.account = nil
	_ = c.store.Delete(storage.KeySSOAccount)
	c.mu.Unlock()

	if account == nil || c.logoutURL == "" {
		return
	}

	endSession := c.logoutURL
	if account.Subject != "" {
		endSession += "?" + url.Values{"logout_hint": {account.Subject}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endSession, nil)
	if err != nil {
		return
	}
	resp, err := c.client().Do(req)
	if err != nil {
		c.logger.Warn("provider logout failed", "error", err)
		return
	}
	resp.Body.Close()
}

// saveAccountLocked persists the account cache. Callers hold c.mu.
func (c *Client) saveAccountLocked(account *Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encoding account cache: %w", err)
	}
	if err := c.store.Set(storage.KeySSOAccount, string(data)); err != nil {
		return fmt.Errorf("writing account cache: %w", err)
	}
	c.account = account
	return nil
}

// withHTTPClient routes oauth2 calls through the injected HTTP client.
func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

func tokenSetFrom(tok *oauth2.Token) *TokenSet {
	set := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		set.IDToken = id
	}
	return set
}
