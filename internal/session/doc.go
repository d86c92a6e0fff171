// Package session owns the authentication lifecycle for lore-console.
//
// # Overview
//
// The Manager is the single writer of session state. It mediates between
// the two login mechanisms — local username/password against the backend,
// and federated enterprise SSO via the identity provider — and exposes one
// outward session shape regardless of which produced it. Every other
// component only reads: the request authorizer through its SessionSource
// view, the route guards through their SessionInfo view.
//
// # Session States
//
// Internally the session is a two-variant union:
//
//   - local: produced by password login; can change its password, cannot
//     silently refresh (expiry always requires a full re-login)
//   - federated: produced by the SSO callback or a silent provider sign-in;
//     can silently refresh, cannot change a password (that lives at the
//     identity provider)
//
// Branching on the variant keeps those rules structural instead of nullable
// field checks.
//
// # Lifecycle
//
//	mgr := session.NewManager(session.Options{...})
//	mgr.Initialize(ctx)      // restore from storage or silent SSO sign-in
//	mgr.Login(ctx, u, p)     // or LoginFederated + HandleFederatedCallback
//	tok, err := mgr.ValidToken()
//	mgr.Logout(ctx)
//
// Initialize must complete before any guard evaluates; Ready reports that.
// A stored session with a live token is restored as-is. A stored session
// whose token has lapsed is cleared quietly — the auth gate redirects, no
// expired notification fires at boot.
//
// # Expiry
//
// ValidToken is the expiry checkpoint. It is not a plain getter: detecting
// a lapsed token clears storage, drops the in-memory state, and publishes a
// single expired event. The signature makes the side effect visible —
// callers receive ErrSessionExpired (wrapped in an AuthError) the moment it
// happens and ErrNoSession afterwards. The expired event is deduplicated to
// at most one per expiry; a fresh login re-arms it.
//
// # Events
//
// UI layers subscribe to the Broadcaster for logged_in, logged_out,
// expired, and refreshed events. Publishing never blocks; slow subscribers
// drop events. The core stays fully testable with no subscriber attached.
//
// # Errors
//
// All failures surface as *AuthError carrying a stable Code, a user-facing
// message, and an optional fallback hint (for example, a federated outage
// suggests local login when both methods are enabled). ShouldRetry and
// RetryDelay implement the transient-failure backoff policy.
package session
