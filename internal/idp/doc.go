// Package idp is the federated identity-provider client.
//
// # Overview
//
// The Client wraps the OAuth2 authorization-code flow against the
// enterprise identity provider: it builds the authorize URL (with a state
// nonce persisted across invocations), completes the code exchange, and
// silently refreshes tokens for an already-active account.
//
// # Flow
//
//	c := idp.New(cfg, store, nil)
//	c.Initialize()                      // restore any cached account
//	url, _ := c.LoginURL()              // user opens this in a browser
//	set, _ := c.HandleCallback(ctx, code, state)
//	set, _ = c.AcquireTokenSilent(ctx)  // later, no interaction needed
//
// The active account (subject, username, refresh token) is cached in the
// session store so silent acquisition works after a restart. Logout is
// best-effort: the provider's logout endpoint is notified but a failure
// there never blocks clearing local state.
package idp
