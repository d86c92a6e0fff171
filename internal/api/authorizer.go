// ABOUTME: HTTP transport attaching bearer credentials to every outbound call
// ABOUTME: Repairs 401s once via silent federated refresh before forcing logout

package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/loreworks/lore-console/internal/storage"
)

// authMethodHeader tells the backend which mechanism produced the token.
const authMethodHeader = "X-Auth-Method"

// SessionSource is the narrow session surface the transport depends on.
// The transport only reads token state; mutations (refresh, forced logout)
// are delegated back to the session manager.
type SessionSource interface {
	// ValidToken returns the current bearer token. Detecting expiry ends
	// the session as a side effect; see the session manager contract.
	ValidToken() (string, error)

	// Method reports which mechanism produced the current session.
	Method() storage.Method

	// Refresh attempts one silent federated token refresh.
	Refresh(ctx context.Context) bool

	// Expire force-ends the session after an unrecoverable 401.
	Expire()
}

// skippedPaths are the authentication endpoints the transport must leave
// alone to avoid recursing into its own repair logic.
var skippedPaths = []string{
	"/auth/login",
	"/auth/sso-callback",
	"/auth/sso-config",
}

// AuthTransport is an http.RoundTripper that attaches the bearer token and
// auth-method marker to outbound requests, and performs the single
// refresh-and-retry repair on authorization failures.
type AuthTransport struct {
	Base    http.RoundTripper
	Session SessionSource
	Logger  *slog.Logger
}

// NewAuthTransport wraps base with request authorization. Pass nil base for
// http.DefaultTransport.
func NewAuthTransport(base http.RoundTripper, session SessionSource) *AuthTransport {
	return &AuthTransport{
		Base:    base,
		Session: session,
		Logger:  slog.Default().With("component", "authorizer"),
	}
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isAuthPath(req.URL.Path) {
		return t.base().RoundTrip(req)
	}

	authed := t.authorize(req)
	resp, err := t.base().RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		// Forbidden responses pass through unchanged: the caller is
		// authenticated but under-privileged, which is a UI concern,
		// not a session-validity concern.
		return resp, nil
	}

	return t.repair(req, resp)
}

// authorize clones the request and attaches the credential headers. The
// original request is left untouched, as RoundTripper requires.
func (t *AuthTransport) authorize(req *http.Request) *http.Request {
	tok, err := t.Session.ValidToken()
	if err != nil || tok == "" {
		return req
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+tok)
	clone.Header.Set(authMethodHeader, string(t.Session.Method()))
	return clone
}

// repair handles a 401: federated sessions get one silent refresh and one
// retry of the original request; everything else forces logout. A request
// is retried at most once.
func (t *AuthTransport) repair(req *http.Request, resp *http.Response) (*http.Response, error) {
	if t.Session.Method() != storage.MethodFederated || !canReplay(req) {
		t.Logger.Info("unauthorized response, ending session", "path", req.URL.Path)
		t.Session.Expire()
		return resp, nil
	}

	if !t.Session.Refresh(req.Context()) {
		t.Logger.Info("silent refresh failed, ending session", "path", req.URL.Path)
		t.Session.Expire()
		return resp, nil
	}

	drain(resp)

	retry, err := replay(req)
	if err != nil {
		t.Session.Expire()
		return nil, err
	}

	t.Logger.Debug("retrying request with refreshed token", "path", req.URL.Path)
	retried, err := t.base().RoundTrip(t.authorize(retry))
	if err != nil {
		return nil, err
	}
	if retried.StatusCode == http.StatusUnauthorized {
		// The refreshed token was rejected too; the session is dead.
		t.Session.Expire()
	}
	return retried, nil
}

// canReplay reports whether the request body can be re-sent.
func canReplay(req *http.Request) bool {
	return req.Body == nil || req.GetBody != nil
}

// replay rebuilds the original request with a fresh body.
func replay(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

// drain discards a response body so the connection can be reused.
func drain(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}
}

func isAuthPath(path string) bool {
	for _, skipped := range skippedPaths {
		if strings.HasSuffix(path, skipped) {
			return true
		}
	}
	return false
}
