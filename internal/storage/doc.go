// Package storage provides the durable key-value session store.
//
// # Overview
//
// Session state must survive process restarts, so the console keeps it in a
// single-table SQLite database. The Store interface exposes plain key
// operations plus session-level helpers (SetSession, GetSession,
// ClearSession) that move the token, serialized profile, and auth method in
// one transaction — the three are never observable in a half-written state.
//
// # Keys
//
// Key names match the storage contract older tooling expects: authToken,
// userData, authMethod (with the legacy userType alias), userPreferences,
// authMethodHistory, ssoAccount, sidebarCollapsed, theme.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//
// Database file locations:
//
//   - Default: $XDG_STATE_HOME/lore-console/console.db
//   - Testing: a temp-dir file, or MemoryStore for pure unit tests
//
// # Error Handling
//
// Get and GetSession return ErrKeyNotFound when nothing is stored; callers
// treat that as "no session" rather than a failure.
package storage
