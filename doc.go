// Package sessiongate is a cookie-session authentication gateway in front of
// per-identity actors.
//
// A [Gateway] serves signup, login, logout, a per-user key-value resource
// and a profile route. Every credential decision is made by the identity
// actor addressed by the normalized email; the gateway only moves tokens
// between cookies and actors.
//
// Build one with [New]:
//
//	gw, err := sessiongate.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithLogger(logger).
//		Build()
//
// # Architecture boundaries
//
// sessiongate owns routing, form parsing, response shapes, metrics and audit.
// Session resolution lives in the middleware package, credential logic in
// identity, and token cryptography in jwt.
//
// # What this package must NOT do
//
//   - Verify token signatures or compare passwords.
//   - Return internal error text to clients.
//   - Import the metrics exporters (they import this package).
package sessiongate
