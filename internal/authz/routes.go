// ABOUTME: Console route table with per-route role requirements
// ABOUTME: Unknown paths fall back to an unrestricted authenticated route

package authz

import "strings"

// routeTable declares the guarded console routes. Administrative screens
// require the Admin role; everything else only requires authentication.
var routeTable = []Route{
	{Path: "/chat"},
	{Path: "/profile"},
	{Path: "/settings"},
	{Path: "/admin", Roles: []string{"Admin"}},
	{Path: "/admin/users", Roles: []string{"Admin"}},
	{Path: "/admin/documents", Roles: []string{"Admin"}},
	{Path: "/admin/analytics", Roles: []string{"Admin"}},
}

// RouteFor resolves a path to its route declaration. Longest prefix wins,
// so /admin/anything inherits the /admin role requirement. Unknown paths
// are treated as unrestricted authenticated routes.
func RouteFor(path string) Route {
	best := Route{Path: path}
	bestLen := -1
	for _, r := range routeTable {
		if path == r.Path || strings.HasPrefix(path, r.Path+"/") {
			if len(r.Path) > bestLen {
				best = Route{Path: path, Roles: r.Roles}
				bestLen = len(r.Path)
			}
		}
	}
	return best
}
