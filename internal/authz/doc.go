// Package authz evaluates route access before navigation.
//
// Two gates run in strict order. The authentication gate requires a live
// session with an unexpired token, redirecting to /login otherwise. The
// role gate then checks the route's role allow-list (absent list passes);
// an authenticated but under-privileged user is redirected to the safe
// default route with a notice, never back to login.
package authz
