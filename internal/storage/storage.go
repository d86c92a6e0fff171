// ABOUTME: Store interface and key contract for durable client-side session state
// ABOUTME: Defines the KV surface plus the atomic session record operations

package storage

import (
	"errors"
)

// ErrKeyNotFound is returned when a requested key does not exist
var ErrKeyNotFound = errors.New("key not found")

// Well-known storage keys. These form the consumer-visible contract of the
// persisted state: any tool inspecting or migrating the session database
// relies on these names.
const (
	KeyAuthToken         = "authToken"
	KeyUserData          = "userData"
	KeyAuthMethod        = "authMethod"
	KeyUserType          = "userType" // legacy alias of authMethod, kept for older tooling
	KeyUserPreferences   = "userPreferences"
	KeyAuthMethodHistory = "authMethodHistory"
	KeySSOAccount        = "ssoAccount"
	KeySidebarCollapsed  = "sidebarCollapsed"
	KeyTheme             = "theme"
)

// Method identifies which authentication mechanism produced a token.
type Method string

const (
	MethodLocal     Method = "local"
	MethodFederated Method = "federated"
)

// SessionRecord is the durable authentication record. Token, UserData and
// AuthMethod are written and cleared together: a reader must never observe
// a token without its matching user and method.
type SessionRecord struct {
	Token    string
	UserData string // serialized UserProfile JSON
	Method   string
}

// Store is the synchronous key-value contract for durable client state.
// Only the session manager writes session keys; other components read.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(key string) (string, error)

	// Set writes the value for key, replacing any existing value.
	Set(key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// SetSession writes token, user data and auth method atomically.
	SetSession(rec SessionRecord) error

	// GetSession reads the session record. Returns ErrKeyNotFound if no
	// session is stored.
	GetSession() (SessionRecord, error)

	// ClearSession removes the session keys (token, user, method) atomically.
	ClearSession() error

	// Close releases the underlying resources.
	Close() error
}
