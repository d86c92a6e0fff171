// ABOUTME: Tests for the authentication and role gates
// ABOUTME: Covers redirect targets, allow-list handling, and gate ordering

package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loreworks/lore-console/internal/session"
)

// fakeSession implements SessionInfo with fixed state.
type fakeSession struct {
	ready    bool
	loggedIn bool
	token    string
	tokenErr error
	role     string
}

func (f *fakeSession) Ready() bool { return f.ready }
func (f *fakeSession) IsLoggedIn() bool { return f.loggedIn }
func (f *fakeSession) ValidToken() (string, error) { return f.token, f.tokenErr }
func (f *fakeSession) UserRole() string { return f.role }

func TestCanActivate_Unauthenticated(t *testing.T) {
	c := NewController(&fakeSession{ready: true})

	d := c.CanActivate(Route{Path: "/knowledge"})
	assert.False(t, d.Allowed)
	assert.Equal(t, LoginRoute, d.RedirectTo)
}

func TestCanActivate_NotReady(t *testing.T) {
	// A guard evaluated before initialization completes fails closed.
	c := NewController(&fakeSession{ready: false, loggedIn: true, token: "t"})

	d := c.CanActivate(Route{Path: "/chat"})
	assert.False(t, d.Allowed)
	assert.Equal(t, LoginRoute, d.RedirectTo)
}

func TestCanActivate_ExpiredToken(t *testing.T) {
	c := NewController(&fakeSession{
		ready:    true,
		loggedIn: true,
		tokenErr: session.ErrSessionExpired,
	})

	d := c.CanActivate(Route{Path: "/chat"})
	assert.False(t, d.Allowed)
	assert.Equal(t, LoginRoute, d.RedirectTo)
}

func TestCanActivate_Authenticated_NoRoleRestriction(t *testing.T) {
	c := NewController(&fakeSession{ready: true, loggedIn: true, token: "t", role: "ClientAccount"})

	d := c.CanActivate(Route{Path: "/chat"})
	assert.True(t, d.Allowed)
	assert.Empty(t, d.RedirectTo)
}

func TestCanActivate_RoleGate(t *testing.T) {
	restricted := Route{Path: "/users", Roles: []string{"Admin", "InternalTeam"}}

	tests := []struct {
		name         string
		role         string
		wantAllowed  bool
		wantRedirect string
	}{
		{name: "role in allow-list", role: "Admin", wantAllowed: true},
		{name: "second role in allow-list", role: "InternalTeam", wantAllowed: true},
		{name: "role not in allow-list", role: "ClientAccount", wantAllowed: false, wantRedirect: DefaultRoute},
		{name: "empty role", role: "", wantAllowed: false, wantRedirect: DefaultRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(&fakeSession{ready: true, loggedIn: true, token: "t", role: tt.role})

			d := c.CanActivate(restricted)
			assert.Equal(t, tt.wantAllowed, d.Allowed)
			assert.Equal(t, tt.wantRedirect, d.RedirectTo)
			if !tt.wantAllowed {
				// Under-privileged users get the access-denied notice and
				// land on the safe default, never back on the login screen.
				assert.NotEmpty(t, d.Notice)
				assert.NotEqual(t, LoginRoute, d.RedirectTo)
			}
		})
	}
}

func TestCanActivate_AuthGatePrecedesRoleGate(t *testing.T) {
	// An unauthenticated user requesting a role-restricted route goes to
	// login, not to the safe default, regardless of role data.
	c := NewController(&fakeSession{ready: true})

	d := c.CanActivate(Route{Path: "/users", Roles: []string{"Admin"}})
	assert.False(t, d.Allowed)
	assert.Equal(t, LoginRoute, d.RedirectTo)
	assert.Empty(t, d.Notice)
}
