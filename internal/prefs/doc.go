// Package prefs stores login-method preferences and usage history.
//
// The store remembers which authentication method the user prefers, keeps a
// bounded history of per-method attempts (capped at 50 entries), and ranks
// methods for the login screen: an explicit remembered preference wins;
// otherwise methods are scored by success rate (weight 0.7) and recency
// (weight 0.3, decaying to zero over 30 days).
package prefs
