// ABOUTME: Route access control: authentication gate plus per-route role gate
// ABOUTME: Pure functions of current session state, evaluated before navigation

package authz

import (
	"log/slog"
	"slices"
)

// Well-known routes the guards redirect to.
const (
	LoginRoute = "/login"
	// DefaultRoute is the safe landing screen for authenticated users,
	// available to every role.
	DefaultRoute = "/chat"
)

// Route is the guard-relevant slice of a route declaration. An absent or
// empty role list means the route is unrestricted (authentication is still
// required).
type Route struct {
	Path  string
	Roles []string
}

// RequiresRole reports whether the route carries a role allow-list.
func (r Route) RequiresRole() bool {
	return len(r.Roles) > 0
}

// SessionInfo is the read-only session surface the guards consult. The
// guards never mutate session state; expiry side effects happen inside
// ValidToken's owner.
type SessionInfo interface {
	Ready() bool
	IsLoggedIn() bool
	ValidToken() (string, error)
	UserRole() string
}

// Decision is the outcome of a guard evaluation.
type Decision struct {
	Allowed    bool
	RedirectTo string
	Notice     string
}

// allow is the passing decision.
var allow = Decision{Allowed: true}

// Controller evaluates the two navigation gates. The authentication gate
// always runs first: an unauthenticated user is sent to the login route
// regardless of any role data on the target.
type Controller struct {
	session SessionInfo
	logger  *slog.Logger
}

// NewController creates a route access controller.
func NewController(session SessionInfo) *Controller {
	return &Controller{
		session: session,
		logger:  slog.Default().With("component", "authz"),
	}
}

// CanActivate evaluates both gates for the target route.
func (c *Controller) CanActivate(route Route) Decision {
	if d := c.checkAuthenticated(route); !d.Allowed {
		return d
	}
	return c.checkRole(route)
}

// checkAuthenticated is the authentication gate: session present and token
// not expired, otherwise redirect to login.
func (c *Controller) checkAuthenticated(route Route) Decision {
	if !c.session.Ready() || !c.session.IsLoggedIn() {
		c.logger.Debug("navigation blocked: not authenticated", "path", route.Path)
		return Decision{RedirectTo: LoginRoute}
	}

	if _, err := c.session.ValidToken(); err != nil {
		c.logger.Debug("navigation blocked: token invalid", "path", route.Path, "error", err)
		return Decision{RedirectTo: LoginRoute}
	}

	return allow
}

// checkRole is the role gate. It assumes the authentication gate passed:
// a role failure redirects to the safe default route, never to login,
// because the user is authenticated but under-privileged.
func (c *Controller) checkRole(route Route) Decision {
	if !route.RequiresRole() {
		return allow
	}

	role := c.session.UserRole()
	if slices.Contains(route.Roles, role) {
		return allow
	}

	c.logger.Info("navigation blocked: insufficient role",
		"path", route.Path,
		"role", role,
		"allowed", route.Roles)
	return Decision{
		RedirectTo: DefaultRoute,
		Notice:     "You do not have permission to access this page",
	}
}
