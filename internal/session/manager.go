// ABOUTME: Session manager owning authentication state for both login methods
// ABOUTME: Mediates local and federated login, persistence, expiry, and refresh

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/loreworks/lore-console/internal/idp"
	"github.com/loreworks/lore-console/internal/prefs"
	"github.com/loreworks/lore-console/internal/storage"
	"github.com/loreworks/lore-console/internal/token"
)

// IdentityClient is the federated identity surface the manager depends on.
// *idp.Client satisfies it; tests substitute fakes.
type IdentityClient interface {
	Initialize() error
	LoginURL() (string, error)
	HandleCallback(ctx context.Context, code, state string) (*idp.TokenSet, error)
	AcquireTokenSilent(ctx context.Context) (*idp.TokenSet, error)
	ActiveAccount() *idp.Account
	Logout(ctx context.Context)
}

// sessionState is the tagged union over the two login mechanisms. Local
// sessions cannot silently refresh; federated sessions cannot change a
// password. Branching on the variant keeps those rules structural instead
// of nullable-field checks.
type sessionState interface {
	method() storage.Method
	user() *UserProfile
}

type localState struct{ profile *UserProfile }

func (s *localState) method() storage.Method { return storage.MethodLocal }
func (s *localState) user() *UserProfile { return s.profile }

type federatedState struct{ profile *UserProfile }

func (s *federatedState) method() storage.Method { return storage.MethodFederated }
func (s *federatedState) user() *UserProfile { return s.profile }

// Options configures a Manager.
type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	Store        storage.Store
	Identity     IdentityClient
	Prefs        *prefs.Store
	LocalEnabled bool
	SSOEnabled   bool
	Logger       *slog.Logger
}

// Manager owns the authentication lifecycle: login state, token storage,
// expiry detection, silent refresh, and role queries. All mutation of
// session state goes through here; other components only read.
type Manager struct {
	mu sync.Mutex

	baseURL      string
	httpClient   *http.Client
	kv           storage.Store
	identity     IdentityClient
	prefs        *prefs.Store
	events       *Broadcaster
	logger       *slog.Logger
	localEnabled bool
	ssoEnabled   bool
	now          func() time.Time

	initialized     bool
	state           sessionState
	expiredNotified bool
}

// NewManager creates a session manager. Call Initialize before using it.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Manager{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   httpClient,
		kv:           opts.Store,
		identity:     opts.Identity,
		prefs:        opts.Prefs,
		events:       NewBroadcaster(logger),
		logger:       logger.With("component", "session"),
		localEnabled: opts.LocalEnabled,
		ssoEnabled:   opts.SSOEnabled,
		now:          time.Now,
	}
}

// loginResponse is the shared shape returned by the login and token-exchange
// endpoints.
type loginResponse struct {
	Token      string      `json:"token"`
	User       UserProfile `json:"user"`
	AuthMethod string      `json:"authMethod"`
}

// Initialize restores session state at boot. It must complete before any
// route guard evaluates. Idempotent.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	if err := m.identity.Initialize(); err != nil {
		return newAuthError(CodeConfigurationError, storage.MethodFederated, err)
	}

	rec, err := m.kv.GetSession()
	switch {
	case err == nil && !token.IsExpired(rec.Token, m.now()):
		profile, parseErr := parseProfile(rec.UserData)
		if parseErr != nil {
			m.logger.Warn("stored session has unreadable profile, clearing", "error", parseErr)
			_ = m.kv.ClearSession()
			break
		}
		m.state = stateFor(storage.Method(rec.Method), profile)
		m.logger.Info("session restored", "method", rec.Method, "user", profile.Username)
		m.events.Publish(Event{Type: EventLoggedIn, Method: storage.Method(rec.Method), User: profile})

	case err == nil:
		// Expired token at boot: clear quietly, the auth gate redirects.
		m.logger.Info("stored session expired, clearing")
		_ = m.kv.ClearSession()

	case errors.Is(err, storage.ErrKeyNotFound):
		// No local session; fall through to the silent federated path.

	default:
		return fmt.Errorf("reading stored session: %w", err)
	}

	if m.state == nil && m.identity.ActiveAccount() != nil {
		if err := m.silentFederatedLoginLocked(ctx); err != nil {
			// A dead provider session is not a boot failure.
			m.logger.Info("silent federated sign-in unavailable", "error", err)
		}
	}

	m.initialized = true
	return nil
}

// Ready reports whether Initialize has completed. Route guards must not
// evaluate before this returns true.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Login authenticates with local credentials against the backend.
func (m *Manager) Login(ctx context.Context, username, password string) (*UserProfile, error) {
	if !m.localEnabled {
		return nil, newAuthError(CodeConfigurationError, storage.MethodLocal, nil)
	}

	body := map[string]string{"username": username, "password": password}
	var res loginResponse
	status, err := m.postJSON(ctx, "/auth/login", body, &res)
	if err != nil || status != http.StatusOK {
		m.recordAttempt(storage.MethodLocal, false)
		return nil, errorFromStatus(status, storage.MethodLocal, err)
	}

	profile := res.User
	if err := m.storeSession(res.Token, &profile, storage.MethodLocal); err != nil {
		return nil, newAuthError(CodeServerError, storage.MethodLocal, err)
	}

	m.recordAttempt(storage.MethodLocal, true)
	if m.prefs != nil && m.prefs.Get().RememberMethod {
		if err := m.prefs.SetPreferredMethod(storage.MethodLocal); err != nil {
			m.logger.Warn("remembering auth method failed", "error", err)
		}
	}

	m.logger.Info("local login succeeded", "user", profile.Username, "role", profile.RoleName)
	return &profile, nil
}

// LoginFederated begins the redirect-based federated flow and returns the
// provider authorize URL. The flow completes via HandleFederatedCallback.
func (m *Manager) LoginFederated() (string, error) {
	url, err := m.identity.LoginURL()
	if err != nil {
		authErr := newAuthError(CodeSSOLoginFailed, storage.MethodFederated, err)
		if errors.Is(err, idp.ErrNotConfigured) {
			authErr = newAuthError(CodeConfigurationError, storage.MethodFederated, err)
		}
		if m.localEnabled {
			authErr.withFallback(storage.MethodLocal)
		}
		return "", authErr
	}
	return url, nil
}

// HandleFederatedCallback completes the redirect flow: it finishes the
// provider exchange, then trades the provider tokens for the backend's own
// bearer token and user profile.
func (m *Manager) HandleFederatedCallback(ctx context.Context, code, state string) (*UserProfile, error) {
	set, err := m.identity.HandleCallback(ctx, code, state)
	if err != nil {
		m.recordAttempt(storage.MethodFederated, false)
		authErr := newAuthError(CodeSSOCallbackFailed, storage.MethodFederated, err)
		if m.localEnabled {
			authErr.withFallback(storage.MethodLocal)
		}
		return nil, authErr
	}

	res, err := m.exchangeTokens(ctx, set)
	if err != nil {
		m.recordAttempt(storage.MethodFederated, false)
		return nil, err
	}

	profile := res.User
	if err := m.storeSession(res.Token, &profile, storage.MethodFederated); err != nil {
		return nil, newAuthError(CodeServerError, storage.MethodFederated, err)
	}

	m.recordAttempt(storage.MethodFederated, true)
	if m.prefs != nil && m.prefs.Get().RememberMethod {
		if err := m.prefs.SetPreferredMethod(storage.MethodFederated); err != nil {
			m.logger.Warn("remembering auth method failed", "error", err)
		}
	}

	m.logger.Info("federated login succeeded", "user", profile.Username, "role", profile.RoleName)
	return &profile, nil
}

// silentFederatedLoginLocked signs in using an already-active provider
// account without user interaction. Callers hold m.mu.
func (m *Manager) silentFederatedLoginLocked(ctx context.Context) error {
	set, err := m.identity.AcquireTokenSilent(ctx)
	if err != nil {
		return err
	}

	res, err := m.exchangeTokens(ctx, set)
	if err != nil {
		return err
	}

	profile := res.User
	if err := m.kv.SetSession(storage.SessionRecord{
		Token:    res.Token,
		UserData: mustMarshalProfile(&profile),
		Method:   string(storage.MethodFederated),
	}); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	m.state = &federatedState{profile: &profile}
	m.expiredNotified = false
	m.events.Publish(Event{Type: EventLoggedIn, Method: storage.MethodFederated, User: &profile})
	m.logger.Info("silent federated sign-in succeeded", "user", profile.Username)
	return nil
}

// exchangeTokens trades provider tokens for the backend session shape.
func (m *Manager) exchangeTokens(ctx context.Context, set *idp.TokenSet) (*loginResponse, error) {
	body := map[string]string{
		"accessToken": set.AccessToken,
		"idToken":     set.IDToken,
	}
	if set.RefreshToken != "" {
		body["refreshToken"] = set.RefreshToken
	}

	var res loginResponse
	status, err := m.postJSON(ctx, "/auth/sso-callback", body, &res)
	if err != nil || status != http.StatusOK {
		authErr := newAuthError(CodeTokenExchangeFailed, storage.MethodFederated, err)
		if status != 0 && status != http.StatusOK {
			authErr.Err = fmt.Errorf("token exchange returned HTTP %d", status)
		}
		if m.localEnabled {
			authErr.withFallback(storage.MethodLocal)
		}
		return nil, authErr
	}
	return &res, nil
}

// Logout clears the session and ends the federated provider session when
// applicable. It never fails: a provider error is logged and local state is
// cleared regardless.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	wasFederated := false
	if m.state != nil {
		_, wasFederated = m.state.(*federatedState)
	}
	m.clearLocked()
	m.mu.Unlock()

	if wasFederated {
		m.identity.Logout(ctx)
	}

	m.events.Publish(Event{Type: EventLoggedOut})
	m.logger.Info("logged out")
}

// LogoutEverywhere is Logout plus removal of all preference and UI state.
func (m *Manager) LogoutEverywhere(ctx context.Context) {
	m.Logout(ctx)

	if m.prefs != nil {
		if err := m.prefs.ClearAll(); err != nil {
			m.logger.Warn("clearing preferences failed", "error", err)
		}
	}
	for _, key := range []string{storage.KeySidebarCollapsed, storage.KeyTheme, storage.KeySSOAccount} {
		if err := m.kv.Delete(key); err != nil {
			m.logger.Warn("clearing storage key failed", "key", key, "error", err)
		}
	}
}

// ValidToken returns the stored bearer token if the session is live.
// Detecting an expired token has the documented side effect of ending the
// session: storage is cleared and a single expired event is published.
// Returns ErrNoSession when no session exists and ErrSessionExpired (wrapped
// in an AuthError) when expiry was just detected.
func (m *Manager) ValidToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.kv.Get(storage.KeyAuthToken)
	if err != nil {
		return "", ErrNoSession
	}

	if token.IsExpired(tok, m.now()) {
		m.expireLocked()
		return "", newAuthError(CodeSessionExpired, "", ErrSessionExpired)
	}

	return tok, nil
}

// Expire force-ends the session after an unrecoverable authorization
// failure. Safe to call repeatedly; the expired event fires at most once
// per expiry.
func (m *Manager) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
}

// expireLocked clears the session and publishes the deduplicated expired
// event. Callers hold m.mu.
func (m *Manager) expireLocked() {
	_, tokenErr := m.kv.Get(storage.KeyAuthToken)
	hadSession := m.state != nil || tokenErr == nil
	m.clearStateLocked()

	if hadSession && !m.expiredNotified {
		m.expiredNotified = true
		m.events.Publish(Event{Type: EventExpired})
		m.logger.Info("session expired")
	}
}

// Refresh replaces the stored token via silent federated acquisition.
// Only meaningful for federated sessions: local tokens cannot be refreshed
// and always require a full re-login. On failure the session is left
// untouched and the caller decides whether to force logout. Safe to run
// concurrently; the last completed refresh wins.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.mu.Lock()
	_, federated := m.state.(*federatedState)
	m.mu.Unlock()
	if !federated {
		return false
	}

	set, err := m.identity.AcquireTokenSilent(ctx)
	if err != nil {
		m.logger.Warn("silent token acquisition failed", "error", err)
		return false
	}

	res, err := m.exchangeTokens(ctx, set)
	if err != nil {
		m.logger.Warn("token exchange during refresh failed", "error", err)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, stillFederated := m.state.(*federatedState); !stillFederated {
		// Logged out while the refresh was in flight; discard the result.
		return false
	}
	if err := m.kv.Set(storage.KeyAuthToken, res.Token); err != nil {
		m.logger.Warn("persisting refreshed token failed", "error", err)
		return false
	}

	m.events.Publish(Event{Type: EventRefreshed, Method: storage.MethodFederated})
	m.logger.Debug("token refreshed")
	return true
}

// ChangePassword updates the local credential. Federated sessions are
// rejected client-side without a network call: their password lives at the
// identity provider.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if state == nil {
		return ErrNoSession
	}
	if _, ok := state.(*localState); !ok {
		authErr := newAuthError(CodeAccessDenied, storage.MethodFederated, nil)
		authErr.Message = "Password changes are managed by your identity provider."
		return authErr
	}

	tok, err := m.ValidToken()
	if err != nil {
		return err
	}

	body := map[string]string{"currentPassword": currentPassword, "newPassword": newPassword}
	status, err := m.postAuthorizedJSON(ctx, "/auth/change-password", tok, body, nil)
	if err != nil || status != http.StatusOK {
		return errorFromStatus(status, storage.MethodLocal, err)
	}
	return nil
}

// LoginOptions describes which login paths the console should present.
type LoginOptions struct {
	LocalEnabled bool
	SSOEnabled   bool
	Recommended  storage.Method
}

// FetchLoginOptions combines the backend's SSO availability with local
// configuration and the user's preference history. Returns a
// CONFIGURATION_ERROR when no method is enabled at all.
func (m *Manager) FetchLoginOptions(ctx context.Context) (LoginOptions, error) {
	opts := LoginOptions{LocalEnabled: m.localEnabled, SSOEnabled: m.ssoEnabled}

	var res struct {
		SSOEnabled bool `json:"ssoEnabled"`
	}
	status, err := m.getJSON(ctx, "/auth/sso-config", &res)
	if err == nil && status == http.StatusOK {
		opts.SSOEnabled = m.ssoEnabled && res.SSOEnabled
	} else {
		m.logger.Warn("sso-config lookup failed, using static configuration",
			"status", status, "error", err)
	}

	if !opts.LocalEnabled && !opts.SSOEnabled {
		return opts, newAuthError(CodeConfigurationError, "", nil)
	}

	if m.prefs != nil {
		opts.Recommended = m.prefs.RecommendedMethod()
	}
	return opts, nil
}

// IsLoggedIn reports whether an authenticated session exists.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != nil
}

// CurrentUser returns the cached profile, or nil.
func (m *Manager) CurrentUser() *UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	return m.state.user()
}

// UserRole returns the cached role name, or empty when unauthenticated.
func (m *Manager) UserRole() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil || m.state.user() == nil {
		return ""
	}
	return m.state.user().RoleName
}

// IsAdmin reports whether the cached role is the designated admin role.
func (m *Manager) IsAdmin() bool {
	return m.UserRole() == AdminRole
}

// Method returns which mechanism produced the current session.
func (m *Manager) Method() storage.Method {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return ""
	}
	return m.state.method()
}

// Subscribe registers for session events until ctx is cancelled.
func (m *Manager) Subscribe(ctx context.Context) (<-chan Event, string) {
	return m.events.Subscribe(ctx)
}

// Unsubscribe removes an event subscription.
func (m *Manager) Unsubscribe(subID string) {
	m.events.Unsubscribe(subID)
}

// storeSession persists and publishes a fresh login.
func (m *Manager) storeSession(tok string, profile *UserProfile, method storage.Method) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.kv.SetSession(storage.SessionRecord{
		Token:    tok,
		UserData: mustMarshalProfile(profile),
		Method:   string(method),
	}); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	m.state = stateFor(method, profile)
	m.expiredNotified = false
	m.events.Publish(Event{Type: EventLoggedIn, Method: method, User: profile})
	return nil
}

// clearLocked wipes storage and in-memory state. Callers hold m.mu.
func (m *Manager) clearLocked() {
	m.clearStateLocked()
	m.expiredNotified = false
}

func (m *Manager) clearStateLocked() {
	if err := m.kv.ClearSession(); err != nil {
		m.logger.Warn("clearing stored session failed", "error", err)
	}
	m.state = nil
}

// recordAttempt updates the preference history; failures there never affect
// the login outcome.
func (m *Manager) recordAttempt(method storage.Method, success bool) {
	if m.prefs == nil {
		return
	}
	if err := m.prefs.RecordUsage(method, success); err != nil {
		m.logger.Warn("recording auth attempt failed", "error", err)
	}
}

func stateFor(method storage.Method, profile *UserProfile) sessionState {
	if method == storage.MethodFederated {
		return &federatedState{profile: profile}
	}
	return &localState{profile: profile}
}

func parseProfile(data string) (*UserProfile, error) {
	var profile UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func mustMarshalProfile(profile *UserProfile) string {
	data, err := json.Marshal(profile)
	if err != nil {
		// UserProfile contains only marshalable fields.
		panic(fmt.Sprintf("marshaling profile: %v", err))
	}
	return string(data)
}

// postJSON posts a JSON body to an authentication endpoint. Returns the HTTP
// status, or 0 with an error when the request never reached the server.
func (m *Manager) postJSON(ctx context.Context, path string, body any, out any) (int, error) {
	return m.doJSON(ctx, http.MethodPost, path, "", body, out)
}

// postAuthorizedJSON posts with a bearer token attached. Only used for the
// change-password endpoint; everything else goes through the request
// authorizer transport.
func (m *Manager) postAuthorizedJSON(ctx context.Context, path, tok string, body any, out any) (int, error) {
	return m.doJSON(ctx, http.MethodPost, path, tok, body, out)
}

func (m *Manager) getJSON(ctx context.Context, path string, out any) (int, error) {
	return m.doJSON(ctx, http.MethodGet, path, "", nil, out)
}

func (m *Manager) doJSON(ctx context.Context, method, path, tok string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
