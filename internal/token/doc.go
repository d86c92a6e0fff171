// Package token decodes bearer token claims without signature verification.
//
// The console never verifies token signatures — that is the backend's job.
// It only needs the expiry (and optionally the subject) to check session
// liveness without a network call. Decode failures are treated as expired:
// a token the codec cannot read is a token the console will not send.
package token
