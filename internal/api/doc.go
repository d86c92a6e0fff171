// Package api talks to the knowledge-base backend.
//
// # Request Authorization
//
// AuthTransport is an http.RoundTripper that attaches the bearer token and
// auth-method marker to every outbound request except the authentication
// endpoints themselves. On a 401 it performs at most one repair: federated
// sessions get a silent refresh and a single replay of the original
// request; anything else forces logout and the response propagates.
// 403 responses pass through untouched — an authenticated but
// under-privileged caller is a UI concern, not a session concern.
//
// # Client
//
// Client wraps the transport with typed JSON calls (Ask, ListUsers).
// Non-2xx responses surface as *Error with the status and body.
package api
