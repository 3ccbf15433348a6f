// Package identity implements the per-identity actor that owns credential
// checks, token issuance and verification, and a private key-value store.
//
// # Addressing
//
// A [Namespace] hands out an [Actor] for a normalized email. Every call for
// that email is executed by a single goroutine reading a mailbox, so signup,
// login, refresh and writes for one identity never race. Different emails
// run in parallel. Idle actors retire and are respawned on demand.
//
// # Two outcomes
//
// VerifyToken and RefreshToken separate verdicts from failures: a rejected
// token is a zero-valued result with a nil error, while a non-nil error means
// the actor could not decide (store down, deadline, namespace closed).
//
// # Refresh tokens
//
// A refresh mints a new access token and leaves the refresh token untouched;
// it remains valid until its own expiry or until its record disappears from
// the store.
package identity
