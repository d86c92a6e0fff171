// ABOUTME: End-to-end scenario tests for the session lifecycle using real SQLite
// ABOUTME: Validates login, restart restore, expiry, and logout without mocking storage

package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loreworks/lore-console/internal/prefs"
	"github.com/loreworks/lore-console/internal/storage"
)

// createScenarioStore creates a real SQLite store in a temp directory.
func createScenarioStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "console.db")
	s, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func scenarioManager(t *testing.T, backend *testBackend, kv storage.Store) *Manager {
	t.Helper()

	return NewManager(Options{
		BaseURL:      backend.srv.URL,
		Store:        kv,
		Identity:     &fakeIdentity{},
		Prefs:        prefs.NewStore(kv),
		LocalEnabled: true,
		SSOEnabled:   true,
	})
}

func TestScenario_LoginSurvivesRestart(t *testing.T) {
	// 1. Real SQLite store backing the session
	kv := createScenarioStore(t)
	ctx := context.Background()
	backend := newTestBackend(t, makeToken(t, time.Now().Add(time.Hour)))

	// 2. Log in with local credentials
	m := scenarioManager(t, backend, kv)
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := m.Login(ctx, "dana", "s3cret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// 3. Simulate a process restart: a fresh manager over the same database
	restarted := scenarioManager(t, backend, kv)
	if err := restarted.Initialize(ctx); err != nil {
		t.Fatalf("initialize after restart: %v", err)
	}

	if !restarted.IsLoggedIn() {
		t.Fatal("session should survive a restart while the token is live")
	}
	if got := restarted.CurrentUser().Username; got != "dana" {
		t.Errorf("restored user = %q, want dana", got)
	}
	if got := restarted.Method(); got != storage.MethodLocal {
		t.Errorf("restored method = %q, want local", got)
	}

	// 4. The restored token authorizes requests
	if _, err := restarted.ValidToken(); err != nil {
		t.Errorf("restored token should be valid: %v", err)
	}
}

func TestScenario_ExpiredTokenAtRestartIsClearedQuietly(t *testing.T) {
	kv := createScenarioStore(t)
	ctx := context.Background()
	backend := newTestBackend(t, makeToken(t, time.Now().Add(time.Hour)))

	// Seed a session whose token has already lapsed.
	if err := kv.SetSession(storage.SessionRecord{
		Token:    makeToken(t, time.Now().Add(-time.Minute)),
		UserData: `{"id":1,"username":"dana","roleName":"Admin"}`,
		Method:   string(storage.MethodLocal),
	}); err != nil {
		t.Fatalf("seeding session: %v", err)
	}

	m := scenarioManager(t, backend, kv)
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if m.IsLoggedIn() {
		t.Fatal("an expired session must not be restored")
	}
	if _, err := kv.Get(storage.KeyAuthToken); err != storage.ErrKeyNotFound {
		t.Errorf("expired token should be cleared from storage, got %v", err)
	}
}

func TestScenario_ExpiryMidSessionThenFreshLogin(t *testing.T) {
	kv := createScenarioStore(t)
	ctx := context.Background()
	backend := newTestBackend(t, makeToken(t, time.Now().Add(time.Hour)))

	m := scenarioManager(t, backend, kv)
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := m.Login(ctx, "dana", "s3cret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// The token lapses while the console is running.
	if err := kv.Set(storage.KeyAuthToken, makeToken(t, time.Now().Add(-time.Second))); err != nil {
		t.Fatalf("staling token: %v", err)
	}
	if _, err := m.ValidToken(); err == nil {
		t.Fatal("expected expiry to be detected")
	}
	if m.IsLoggedIn() {
		t.Fatal("detected expiry must end the session")
	}

	// A fresh login re-establishes everything, including expiry notification
	// for the next lapse.
	backend.token = makeToken(t, time.Now().Add(time.Hour))
	if _, err := m.Login(ctx, "dana", "s3cret"); err != nil {
		t.Fatalf("re-login: %v", err)
	}
	if !m.IsLoggedIn() {
		t.Fatal("fresh login should establish a session")
	}
	if _, err := m.ValidToken(); err != nil {
		t.Errorf("fresh token should be valid: %v", err)
	}
}

func TestScenario_LogoutPreservesPreferences(t *testing.T) {
	kv := createScenarioStore(t)
	ctx := context.Background()
	backend := newTestBackend(t, makeToken(t, time.Now().Add(time.Hour)))

	m := scenarioManager(t, backend, kv)
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := m.Login(ctx, "dana", "s3cret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := kv.Set(storage.KeyTheme, "dark"); err != nil {
		t.Fatalf("setting theme: %v", err)
	}

	m.Logout(ctx)

	if m.IsLoggedIn() {
		t.Fatal("logout must end the session")
	}
	if _, err := kv.Get(storage.KeyAuthToken); err != storage.ErrKeyNotFound {
		t.Errorf("token should be cleared, got %v", err)
	}
	// Plain logout keeps device-local preferences.
	if theme, err := kv.Get(storage.KeyTheme); err != nil || theme != "dark" {
		t.Errorf("theme should survive plain logout, got %q (%v)", theme, err)
	}
	if _, err := kv.Get(storage.KeyAuthMethodHistory); err != nil {
		t.Errorf("auth history should survive plain logout: %v", err)
	}

	// Login still works after logout.
	if _, err := m.Login(ctx, "dana", "s3cret"); err != nil {
		t.Fatalf("login after logout: %v", err)
	}
	if status := backend.calls["/auth/login"].Load(); status != 2 {
		t.Errorf("expected 2 login calls, got %d", status)
	}
}

func TestScenario_ChangePasswordRequiresLiveSession(t *testing.T) {
	kv := createScenarioStore(t)
	ctx := context.Background()
	backend := newTestBackend(t, makeToken(t, time.Now().Add(time.Hour)))

	m := scenarioManager(t, backend, kv)
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := m.ChangePassword(ctx, "old", "new"); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	if _, err := m.Login(ctx, "dana", "s3cret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := m.ChangePassword(ctx, "old", "new"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if got := backend.calls["/auth/change-password"].Load(); got != 1 {
		t.Errorf("expected 1 change-password call, got %d", got)
	}
}
