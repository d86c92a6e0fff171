// ABOUTME: Tests for route table resolution
// ABOUTME: Covers prefix inheritance and unknown-path fallback

package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteFor(t *testing.T) {
	tests := []struct {
		path      string
		wantRoles []string
	}{
		{"/chat", nil},
		{"/profile", nil},
		{"/admin", []string{"Admin"}},
		{"/admin/users", []string{"Admin"}},
		{"/admin/users/42", []string{"Admin"}},
		{"/admin/analytics", []string{"Admin"}},
		{"/somewhere/new", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			route := RouteFor(tt.path)
			assert.Equal(t, tt.path, route.Path)
			assert.Equal(t, tt.wantRoles, route.Roles)
		})
	}
}

func TestRouteForLongestPrefixWins(t *testing.T) {
	// A nested path under /admin inherits the role requirement even when
	// the exact path is not declared.
	route := RouteFor("/admin/documents/archive")
	assert.True(t, route.RequiresRole())
}
